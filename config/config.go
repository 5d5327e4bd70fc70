// Package config loads bus settings from a YAML file and overlays environment variables.
//
// Environment variable names follow the pattern SCGBUS_{FIELD}, with nested structs
// adding a segment (SCGBUS_BACKOFF_BASE, SCGBUS_RELAY_KIND). Durations use time.ParseDuration
// syntax; lists are comma separated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCGBUS"

// Variants.
const (
	VariantSync  = "sync"
	VariantAsync = "async"
)

// Relay kinds.
const (
	RelayNone     = ""
	RelayMemory   = "memory"
	RelayNATS     = "nats"
	RelayRabbitMQ = "rabbitmq"
	RelayKafka    = "kafka"
	RelayRedis    = "redis"
)

var ErrInvalid = errors.New("config: invalid")

// Backoff is the wait between event handler attempts: min(Base*2^n, Cap).
type Backoff struct {
	Base time.Duration `yaml:"base"`
	Cap  time.Duration `yaml:"cap"`
}

// Relay selects the broker integration events are mirrored to.
type Relay struct {
	Kind    string        `yaml:"kind"`
	URL     string        `yaml:"url"`
	Brokers []string      `yaml:"brokers"`
	Name    string        `yaml:"name"`
	Channel string        `yaml:"channel"`
	Timeout time.Duration `yaml:"timeout"`
}

// Bus is the file/env representation of a bus.
type Bus struct {
	Name          string        `yaml:"name"`
	Variant       string        `yaml:"variant"`
	LogLevel      string        `yaml:"log_level"`
	EventRetrying int           `yaml:"event_retrying"`
	Backoff       Backoff       `yaml:"backoff"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxInFlight   int64         `yaml:"max_in_flight"`
	Relay         Relay         `yaml:"relay"`
}

// Default returns the settings used when neither file nor env say otherwise.
func Default() Bus {
	return Bus{
		Name:          "servicebus",
		Variant:       VariantSync,
		LogLevel:      "info",
		EventRetrying: 5,
		Backoff:       Backoff{Base: 100 * time.Millisecond, Cap: 10 * time.Second},
		PollInterval:  100 * time.Millisecond,
	}
}

// Load reads path (if non-empty) over the defaults, applies env overrides and validates.
func Load(path string) (Bus, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Bus{}, fmt.Errorf("config: read %s: %w", path, err)
		}

		if err := decode(bytes.NewReader(data), &cfg); err != nil {
			return Bus{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := (Env{}).Apply(&cfg); err != nil {
		return Bus{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Bus{}, err
	}

	return cfg, nil
}

// Parse decodes YAML from r over the defaults and validates, without env overrides.
func Parse(r io.Reader) (Bus, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return Bus{}, fmt.Errorf("config: parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Bus{}, err
	}

	return cfg, nil
}

func decode(r io.Reader, cfg *Bus) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// Validate rejects negative limits and unknown variants or relay kinds.
func (b Bus) Validate() error {
	var errs []error

	switch b.Variant {
	case VariantSync, VariantAsync:
	default:
		errs = append(errs, fmt.Errorf("%w: variant %q", ErrInvalid, b.Variant))
	}

	if b.EventRetrying < 1 {
		errs = append(errs, fmt.Errorf("%w: event_retrying must be >= 1, got %d", ErrInvalid, b.EventRetrying))
	}

	if b.Backoff.Base < 0 || b.Backoff.Cap < 0 {
		errs = append(errs, fmt.Errorf("%w: backoff must not be negative", ErrInvalid))
	}

	if b.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: poll_interval must not be negative", ErrInvalid))
	}

	if b.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("%w: max_in_flight must not be negative", ErrInvalid))
	}

	errs = append(errs, b.Relay.validate()...)

	return errors.Join(errs...)
}

func (r Relay) validate() []error {
	switch r.Kind {
	case RelayNone, RelayMemory:
		return nil
	case RelayNATS, RelayRabbitMQ, RelayRedis:
		if r.URL == "" {
			return []error{fmt.Errorf("%w: relay %s requires url", ErrInvalid, r.Kind)}
		}

		return nil
	case RelayKafka:
		if len(r.Brokers) == 0 {
			return []error{fmt.Errorf("%w: relay kafka requires brokers", ErrInvalid)}
		}

		return nil
	default:
		return []error{fmt.Errorf("%w: relay kind %q", ErrInvalid, r.Kind)}
	}
}
