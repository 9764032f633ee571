package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"

	"github.com/shinshin4n4n/tube-review-sub001/pkg/validator"
)

// Option tweaks how environment variables are read.
type Option func(*env.Options)

// WithPrefix namespaces every variable, e.g. "TUBE_" + "HTTP_PORT".
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnvironment reads from the given map instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}

// Load parses environment variables into cfg using `env` tags and then
// enforces any `validate` tags, so range checks live next to the defaults:
//
//	type Config struct {
//	    Retries int `env:"MAX_RETRIES" envDefault:"3" validate:"min=1,max=10"`
//	}
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := validator.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
