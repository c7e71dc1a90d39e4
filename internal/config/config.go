package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Browser BrowserConfig `mapstructure:"browser"`
	Search  SearchConfig  `mapstructure:"search"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

// BrowserConfig describes the external browser-automation binary and how to bootstrap it.
// Timeouts are in seconds.
type BrowserConfig struct {
	Binary         string `mapstructure:"binary"`          // e.g. "agent-browser"
	PackageManager string `mapstructure:"package_manager"` // e.g. "npm"
	Package        string `mapstructure:"package"`         // package installed with "install -g"
	Version        string `mapstructure:"version"`
	Timeout        int    `mapstructure:"timeout"`         // open / snapshot
	ProbeTimeout   int    `mapstructure:"probe_timeout"`   // --version
	InstallTimeout int    `mapstructure:"install_timeout"` // package manager install
	EngineTimeout  int    `mapstructure:"engine_timeout"`  // "<binary> install"
	MaxOutputBytes int64  `mapstructure:"max_output_bytes"`
}

// SearchConfig represents search behaviour
type SearchConfig struct {
	Engine         string   `mapstructure:"engine"`          // base search URL
	RatePerMinute  int      `mapstructure:"rate_per_minute"` // 0 disables rate limiting
	BlockedDomains []string `mapstructure:"blocked_domains"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // Database path, default ./data/search-cache.db
	TTL     int    `mapstructure:"ttl"`  // seconds
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(cfgFile string) *Config {
	// Load .env file if exists (ignore error if not found)
	godotenv.Load()
	godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	// Replace . with _ for nested config keys
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("BSEARCH")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")          // Same directory as executable (priority)
		v.AddConfigPath("./configs")  // configs/ subdirectory
		v.AddConfigPath("../configs") // For running from bin/ directory
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is ok, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic("Error reading config file: " + err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("Error unmarshaling config: " + err.Error())
	}

	return &cfg
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("Error unmarshaling default config: " + err.Error())
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 30)
	// covers a cold first search: probe, package install, engine install, open, snapshot
	v.SetDefault("server.write_timeout", 300)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Browser defaults
	v.SetDefault("browser.binary", "agent-browser")
	v.SetDefault("browser.package_manager", "npm")
	v.SetDefault("browser.package", "agent-browser")
	v.SetDefault("browser.version", "latest")
	v.SetDefault("browser.timeout", 30)
	v.SetDefault("browser.probe_timeout", 5)
	v.SetDefault("browser.install_timeout", 60)
	v.SetDefault("browser.engine_timeout", 120)
	v.SetDefault("browser.max_output_bytes", 10*1024*1024)

	// Search defaults
	v.SetDefault("search.engine", "https://www.google.com/search")
	v.SetDefault("search.rate_per_minute", 30)
	v.SetDefault("search.blocked_domains", []string{
		"google.com",
		"googleadservices.com",
		"googlesyndication.com",
		"doubleclick.net",
		"gstatic.com",
		"googleusercontent.com",
	})

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "./data/search-cache.db")
	v.SetDefault("cache.ttl", 900)
}
