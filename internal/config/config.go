package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	ERAP     ERAPConfig     `mapstructure:"erap"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ERAPConfig struct {
	FinesBaseURL string        `mapstructure:"fines_base_url"`
	PDFBaseURL   string        `mapstructure:"pdf_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PageSize     int           `mapstructure:"page_size"`
}

type StorageConfig struct {
	DocumentDir string `mapstructure:"document_dir"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from an optional yaml file and the environment
// (FINES_ prefix, e.g. FINES_DATABASE_DSN).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "traffic_fines/fines.db")
	v.SetDefault("erap.fines_base_url", "https://erap-public.kgp.kz/psap/api")
	v.SetDefault("erap.pdf_base_url", "https://erap-public.kgp.kz/psap/api/pdf/showpdf/av")
	v.SetDefault("erap.timeout", 30*time.Second)
	v.SetDefault("erap.page_size", 10)
	v.SetDefault("storage.document_dir", "traffic_fines/pdfs")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("FINES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required (FINES_AUTH_JWT_SECRET)")
	}

	return &cfg, nil
}
