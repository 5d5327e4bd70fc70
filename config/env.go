package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Env overlays environment variables on a config struct.
type Env struct {
	// Prefix for variable names. Default: EnvPrefix.
	Prefix string

	// lookup overrides os.LookupEnv for testing.
	lookup func(string) (string, bool)
}

func (e Env) prefix() string {
	if e.Prefix == "" {
		return EnvPrefix
	}

	return e.Prefix
}

func (e Env) lookupEnv(key string) (string, bool) {
	if e.lookup != nil {
		return e.lookup(key)
	}

	return os.LookupEnv(key)
}

// Apply sets every field of dst that has a matching variable. Unset variables leave fields untouched.
func (e Env) Apply(dst *Bus) error {
	return e.apply(reflect.ValueOf(dst).Elem(), e.prefix())
}

func (e Env) apply(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		key := prefix + "_" + upperSnake(f.Name)
		fv := v.Field(i)

		if f.Type.Kind() == reflect.Struct && f.Type != durationType {
			if err := e.apply(fv, key); err != nil {
				return err
			}

			continue
		}

		raw, ok := e.lookupEnv(key)
		if !ok {
			continue
		}

		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("config: env %s: %w", key, err)
		}
	}

	return nil
}

func setField(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}

		fv.SetInt(int64(d))

		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}

		fv.SetInt(n)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return nil
		}

		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}

		fv.Set(reflect.ValueOf(parts))
	}

	return nil
}

// upperSnake converts CamelCase to UPPER_SNAKE_CASE: PollInterval -> POLL_INTERVAL, URL -> URL.
func upperSnake(s string) string {
	runes := []rune(s)

	var b strings.Builder

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteByte('_')
			}
		}

		b.WriteRune(unicode.ToUpper(r))
	}

	return b.String()
}
