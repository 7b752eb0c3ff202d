// Package config loads gateway configuration from an optional YAML file with
// AUTHGATE_* environment overrides.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	Env        string `yaml:"env"         mapstructure:"env"`

	// Backend selects the PDP model: opa, fga, or mock.
	Backend string `yaml:"backend" mapstructure:"backend"`

	IntrospectURL string `yaml:"introspect_url" mapstructure:"introspect_url"`

	OPAURL string `yaml:"opa_url" mapstructure:"opa_url"`

	FGAAPIURL string `yaml:"fga_api_url" mapstructure:"fga_api_url"`
	// FGAStoreID pins a store id; when empty the id is re-read from
	// FGAStoreIDFile before every graph call.
	FGAStoreID     string `yaml:"fga_store_id"      mapstructure:"fga_store_id"`
	FGAStoreIDFile string `yaml:"fga_store_id_file" mapstructure:"fga_store_id_file"`

	CredentialsDir string `yaml:"credentials_dir" mapstructure:"credentials_dir"`
	EnableCORS     bool   `yaml:"enable_cors"     mapstructure:"enable_cors"`
}

// Load reads the config at path, or defaults plus environment when the file
// does not exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("env", "prod")
	v.SetDefault("backend", "opa")
	v.SetDefault("introspect_url", "http://localhost:4445/admin/oauth2/introspect")
	v.SetDefault("opa_url", "http://localhost:8181")
	v.SetDefault("fga_api_url", "http://localhost:8080")
	v.SetDefault("fga_store_id", "")
	v.SetDefault("fga_store_id_file", "/shared/openfga-store-id")
	v.SetDefault("credentials_dir", "/shared")
	v.SetDefault("enable_cors", false)

	v.SetEnvPrefix("AUTHGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		// A missing file is fine: defaults plus env cover it.
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
