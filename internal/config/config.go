// Package config carga la configuración de cupones: valores por defecto,
// archivo cupones.yaml opcional y variables de entorno (prefijo CUPONES_,
// más las POSTGRES_* y FERIADOS_API_URL de siempre).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmtruffa/cupones/internal/store"
)

// Config es la configuración completa.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"db"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Feriados FeriadosConfig `mapstructure:"feriados"`
	Client   ClientConfig   `mapstructure:"client"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Calc     CalcConfig     `mapstructure:"calc"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DBConfig elige el driver; para sqlite3 Path es el archivo.
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type PostgresConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

type FeriadosConfig struct {
	APIURL string `mapstructure:"api_url"`
	SyncAt string `mapstructure:"sync_at"`
}

type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	RateTTL time.Duration `mapstructure:"rate_ttl"`
}

type CalcConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Decimals int           `mapstructure:"decimales"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store devuelve la configuración de Postgres para el store.
func (c PostgresConfig) Store() store.PostgresConfig {
	return store.PostgresConfig{
		User:     c.User,
		Password: c.Password,
		Host:     c.Host,
		Port:     c.Port,
		DB:       c.DB,
		SSLMode:  c.SSLMode,
	}
}

// DBConfigured indica si hay datos suficientes para abrir la base.
func (c Config) DBConfigured() bool {
	if c.DB.Driver == store.DriverSQLite {
		return c.DB.Path != ""
	}
	p := c.Postgres
	return p.User != "" && p.Password != "" && p.Host != "" && p.Port != "" && p.DB != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("db.driver", store.DriverPostgres)
	v.SetDefault("db.path", "")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("feriados.api_url", "https://api.argentinadatos.com/v1/feriados")
	v.SetDefault("feriados.sync_at", "03:00")

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", 10*time.Second)

	v.SetDefault("cache.rate_ttl", 5*time.Minute)

	v.SetDefault("calc.debounce", 300*time.Millisecond)
	v.SetDefault("calc.decimales", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// envAliases son variables de entorno heredadas, sin prefijo.
var envAliases = map[string]string{
	"postgres.user":     "POSTGRES_USER",
	"postgres.password": "POSTGRES_PASSWORD",
	"postgres.host":     "POSTGRES_HOST",
	"postgres.port":     "POSTGRES_PORT",
	"postgres.db":       "POSTGRES_DB",
	"feriados.api_url":  "FERIADOS_API_URL",
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CUPONES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		// la variable con prefijo tiene prioridad sobre la heredada
		prefixed := "CUPONES_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.DB.Driver != store.DriverPostgres && cfg.DB.Driver != store.DriverSQLite {
		return nil, fmt.Errorf("db.driver inválido: %q", cfg.DB.Driver)
	}
	return &cfg, nil
}

// Load busca cupones.yaml en ./, ./config y /etc/cupones. El archivo es
// opcional.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigName("cupones")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cupones")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile lee un archivo de configuración puntual.
func LoadFromFile(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}
