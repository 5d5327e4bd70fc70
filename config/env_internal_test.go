package config

import "testing"

func TestUpperSnake(t *testing.T) {
	tests := map[string]string{
		"Name":          "NAME",
		"PollInterval":  "POLL_INTERVAL",
		"EventRetrying": "EVENT_RETRYING",
		"MaxInFlight":   "MAX_IN_FLIGHT",
		"URL":           "URL",
		"HTTPTimeout":   "HTTP_TIMEOUT",
	}

	for in, want := range tests {
		if got := upperSnake(in); got != want {
			t.Fatalf("upperSnake(%q)=%q want %q", in, got, want)
		}
	}
}

func TestEnv_LookupOverride(t *testing.T) {
	env := Env{Prefix: "X", lookup: func(k string) (string, bool) {
		if k == "X_VARIANT" {
			return "async", true
		}

		return "", false
	}}

	cfg := Default()
	if err := env.Apply(&cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Variant != VariantAsync || cfg.Name != "servicebus" {
		t.Fatalf("cfg=%+v", cfg)
	}
}
