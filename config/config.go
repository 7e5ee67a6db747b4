// Package config holds runtime configuration for the calendar server core,
// loaded from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config controls sharing and provisioning behavior.
type Config struct {
	// SharingEnabled controls whether shared-collection properties are
	// exposed to clients. Mutation endpoints are not gated by this flag.
	SharingEnabled bool `env:"CALDAV_SHARING_ENABLED" envDefault:"true"`

	// AllowExternalUsers would permit invites to user ids that do not
	// resolve to a local principal. External users are not supported, so
	// validation ignores this flag regardless of its value.
	AllowExternalUsers bool `env:"CALDAV_SHARING_ALLOW_EXTERNAL" envDefault:"false"`

	// Realm is the Basic Auth realm presented on 401 responses.
	Realm string `env:"CALDAV_REALM" envDefault:"CalDAV Server"`

	// BaseURI is the URL prefix the server is mounted under.
	BaseURI string `env:"CALDAV_BASE_URI" envDefault:"/"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no environment is present.
func Default() Config {
	return Config{
		SharingEnabled: true,
		Realm:          "CalDAV Server",
		BaseURI:        "/",
	}
}
