package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Webshare  WebshareConfig  `mapstructure:"webshare"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Filters   FilterConfig    `mapstructure:"filters"`
	Catalogue CatalogueConfig `mapstructure:"catalogue"`
	Trakt     TraktConfig     `mapstructure:"trakt"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds the embedded database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	TailSize   int    `mapstructure:"tail_size"`
}

// AuthConfig holds optional API authentication settings. When Enabled is
// false the API is open, which is the expected setup on a trusted LAN.
type AuthConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
	JWTSecret    string `mapstructure:"jwt_secret"`    // generated when empty
}

// WebshareConfig holds credentials and transport options for the streaming
// service.
type WebshareConfig struct {
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	BaseURL       string `mapstructure:"base_url"`
	ForceHTTPS    bool   `mapstructure:"force_https"`
	DownloadType  string `mapstructure:"download_type"` // video_stream or file_download
	KeepAliveSecs int    `mapstructure:"keep_alive_secs"`
	Timeout       int    `mapstructure:"timeout"` // seconds
}

// MetadataConfig holds provider selection and cache settings.
type MetadataConfig struct {
	Priority        string     `mapstructure:"priority"` // tmdb_first, csfd_first, tmdb_only, csfd_only, none
	CacheTTLMinutes int        `mapstructure:"cache_ttl_minutes"`
	CacheMaxItems   int        `mapstructure:"cache_max_items"`
	TMDB            TMDBConfig `mapstructure:"tmdb"`
	CSFD            CSFDConfig `mapstructure:"csfd"`
}

// TMDBConfig holds TMDb API settings.
type TMDBConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	ImageBaseURL string `mapstructure:"image_base_url"`
	Language     string `mapstructure:"language"`
	Region       string `mapstructure:"region"`
	Timeout      int    `mapstructure:"timeout"` // seconds
}

// CSFDConfig holds settings for the ČSFD scrape provider.
type CSFDConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	Timeout   int    `mapstructure:"timeout"` // seconds
}

// FilterConfig holds default result filters; requests may override them.
type FilterConfig struct {
	MinQuality        string   `mapstructure:"min_quality"` // "", sd, hd, uhd
	Audio             []string `mapstructure:"audio"`
	SubtitlesRequired bool     `mapstructure:"subtitles_required"`
	MinMovieSizeMB    int64    `mapstructure:"min_movie_size_mb"`
	MinSeriesSizeMB   int64    `mapstructure:"min_series_size_mb"`
}

// CatalogueConfig holds listing behavior.
type CatalogueConfig struct {
	PageSize      int    `mapstructure:"page_size"` // clamped to 20..100
	Sort          string `mapstructure:"sort"`      // relevance, recent, rating, largest, smallest
	MaxFetchPages int    `mapstructure:"max_fetch_pages"`
	HistorySize   int    `mapstructure:"history_size"`
}

// TraktConfig holds Trakt.tv application credentials. Empty client ID
// disables the integration.
type TraktConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults. A .env file in
// the working directory is applied before viper runs.
func Load(configPath string) (*Config, error) {
	cfg, _, err := load(configPath)
	return cfg, err
}

// LoadAndWatch behaves like Load and additionally re-reads the config file
// on change, invoking onChange with the freshly parsed config. Changes that
// fail to parse or validate are dropped.
func LoadAndWatch(configPath string, onChange func(*Config)) (*Config, error) {
	cfg, v, err := load(configPath)
	if err != nil {
		return nil, err
	}

	if onChange != nil && v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(fsnotify.Event) {
			next := &Config{}
			if err := v.Unmarshal(next); err != nil {
				return
			}
			if err := next.Validate(); err != nil {
				return
			}
			onChange(next)
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func load(configPath string) (*Config, *viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.tvstreamd")
		v.AddConfigPath("/etc/tvstreamd")
	}

	v.SetEnvPrefix("TVSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8620)

	v.SetDefault("database.path", "./data/tvstreamd.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.tail_size", 500)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("webshare.username", "")
	v.SetDefault("webshare.password", "")
	v.SetDefault("webshare.base_url", "https://webshare.cz/api")
	v.SetDefault("webshare.force_https", true)
	v.SetDefault("webshare.download_type", "video_stream")
	v.SetDefault("webshare.keep_alive_secs", 600)
	v.SetDefault("webshare.timeout", 15)

	v.SetDefault("metadata.priority", "tmdb_first")
	v.SetDefault("metadata.cache_ttl_minutes", 60)
	v.SetDefault("metadata.cache_max_items", 1000)
	v.SetDefault("metadata.tmdb.api_key", EmbeddedTMDBKey)
	v.SetDefault("metadata.tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("metadata.tmdb.image_base_url", "https://image.tmdb.org/t/p")
	v.SetDefault("metadata.tmdb.language", "cs-CZ")
	v.SetDefault("metadata.tmdb.region", "CZ")
	v.SetDefault("metadata.tmdb.timeout", 10)
	v.SetDefault("metadata.csfd.base_url", "https://www.csfd.cz")
	v.SetDefault("metadata.csfd.user_agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	v.SetDefault("metadata.csfd.timeout", 15)

	v.SetDefault("filters.min_quality", "")
	v.SetDefault("filters.audio", []string{})
	v.SetDefault("filters.subtitles_required", false)
	v.SetDefault("filters.min_movie_size_mb", 100)
	v.SetDefault("filters.min_series_size_mb", 50)

	v.SetDefault("catalogue.page_size", 40)
	v.SetDefault("catalogue.sort", "relevance")
	v.SetDefault("catalogue.max_fetch_pages", 5)
	v.SetDefault("catalogue.history_size", 30)

	v.SetDefault("trakt.client_id", "")
	v.SetDefault("trakt.client_secret", "")
	v.SetDefault("trakt.base_url", "https://api.trakt.tv")
}

// Validate checks enum fields and normalizes bounded values.
func (c *Config) Validate() error {
	switch c.Webshare.DownloadType {
	case "video_stream", "file_download":
	default:
		return fmt.Errorf("invalid webshare.download_type %q", c.Webshare.DownloadType)
	}

	switch c.Metadata.Priority {
	case "tmdb_first", "csfd_first", "tmdb_only", "csfd_only", "none":
	default:
		return fmt.Errorf("invalid metadata.priority %q", c.Metadata.Priority)
	}

	switch c.Filters.MinQuality {
	case "", "sd", "hd", "uhd":
	default:
		return fmt.Errorf("invalid filters.min_quality %q", c.Filters.MinQuality)
	}

	switch c.Catalogue.Sort {
	case "relevance", "recent", "rating", "largest", "smallest":
	default:
		return fmt.Errorf("invalid catalogue.sort %q", c.Catalogue.Sort)
	}

	if c.Catalogue.PageSize < 20 {
		c.Catalogue.PageSize = 20
	}
	if c.Catalogue.PageSize > 100 {
		c.Catalogue.PageSize = 100
	}
	if c.Catalogue.MaxFetchPages < 1 {
		c.Catalogue.MaxFetchPages = 1
	}
	if c.Webshare.KeepAliveSecs < 60 {
		c.Webshare.KeepAliveSecs = 60
	}

	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
