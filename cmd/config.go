package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/spf13/viper"
)

type listenerConf struct {
	Activate    bool `mapstructure:"activate"`                        // If true starts the server on its own socket.
	Port        int  `mapstructure:"port" validate:"min=0,max=65535"` // Port to listen on, 0 picks a free one.
	OnLocalhost bool `mapstructure:"onLocalhost"`                     // If true listens on 127.0.0.1 instead of the main address.
}

// config contains configurable settings for the program.
type config struct {
	Address         string        `mapstructure:"address"`                                  // Bind address of the main socket, empty for wildcard.
	Family          bind.Family   `mapstructure:"family"`                                   // "any", "ipv4" or "ipv6".
	Backlog         int           `mapstructure:"backlog" validate:"min=1"`                 // Listen backlog for every socket.
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" validate:"gt=0"`          // Grace period for draining connections.
	Status          listenerConf  `mapstructure:"status"`                                   // Settings for the status HTTP server.
	Health          listenerConf  `mapstructure:"health"`                                   // Settings for the gRPC health server.
	Verbosity       string        `mapstructure:"verbosity" validate:"oneof=prod dev none"` // Accepted values: "prod", "dev", or "none".
}

// configError marks failures to load or validate the configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return "config: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// newViper returns a viper instance holding the defaults and reading
// LISTEND_* environment variables, e.g. LISTEND_STATUS_PORT.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("address", "")
	v.SetDefault("family", "any")
	v.SetDefault("backlog", 128)
	v.SetDefault("shutdownTimeout", 5*time.Second)
	v.SetDefault("status.activate", false)
	v.SetDefault("status.port", 0)
	v.SetDefault("status.onLocalhost", false)
	v.SetDefault("health.activate", false)
	v.SetDefault("health.port", 0)
	v.SetDefault("health.onLocalhost", false)
	v.SetDefault("verbosity", "prod")

	v.SetEnvPrefix("LISTEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfig merges the config file at filename (JSON, YAML or TOML, by
// extension) into v and decodes the result. An empty filename skips the file.
func readConfig(v *viper.Viper, filename string) (*config, error) {
	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, &configError{err}
		}
	}

	conf := &config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(conf, hook); err != nil {
		return nil, &configError{err}
	}
	if err := validator.New().Struct(conf); err != nil {
		return nil, &configError{fmt.Errorf("invalid settings: %w", err)}
	}
	return conf, nil
}
