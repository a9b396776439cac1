package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. NOVELHUB_LEGACY_DSN.
const EnvPrefix = "NOVELHUB"

type Config struct {
	Legacy    LegacyConfig    `mapstructure:"legacy"`
	Store     StoreConfig     `mapstructure:"store"`
	Search    SearchConfig    `mapstructure:"search"`
	Migration MigrationConfig `mapstructure:"migration"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
	Social    SocialConfig    `mapstructure:"social"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Report    ReportConfig    `mapstructure:"report"`
}

type LegacyConfig struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type StoreConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type SearchConfig struct {
	Path string `mapstructure:"path"`
}

// StageSkips disables individual orchestrator stages.
type StageSkips struct {
	Taxonomy     bool `mapstructure:"taxonomy"`
	Content      bool `mapstructure:"content"`
	Users        bool `mapstructure:"users"`
	Ratings      bool `mapstructure:"ratings"`
	Bookmarks    bool `mapstructure:"bookmarks"`
	Comments     bool `mapstructure:"comments"`
	ReadingLists bool `mapstructure:"reading_lists"`
	Stats        bool `mapstructure:"stats"`
}

type MigrationConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	Workers   int `mapstructure:"workers"`
	// MaxNovels caps migrated novels; -1 means unlimited and 0 skips
	// migration entirely so only the index is rebuilt.
	MaxNovels         int        `mapstructure:"max_novels"`
	DryRun            bool       `mapstructure:"dry_run"`
	RebuildIndexAfter bool       `mapstructure:"rebuild_index_after"`
	Skip              StageSkips `mapstructure:"skip"`
}

type TaxonomyConfig struct {
	MaxGenres int `mapstructure:"max_genres"`
}

type SocialConfig struct {
	FavoriteThreshold int `mapstructure:"favorite_threshold"`
}

type SyncConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
	TCPAddr  string `mapstructure:"tcp_addr"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer"`
	JWTDuration time.Duration `mapstructure:"jwt_duration"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type ReportConfig struct {
	Path string `mapstructure:"path"`
}

// DataDir is ~/.novelhub, or the working directory when no home is available.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".novelhub")
}

// SetDefaults registers every key so environment overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	dir := DataDir()

	v.SetDefault("legacy.driver", "sqlite3")
	v.SetDefault("legacy.dsn", filepath.Join(dir, "legacy.db"))
	v.SetDefault("legacy.query_timeout", 30*time.Second)

	v.SetDefault("store.path", filepath.Join(dir, "store"))
	v.SetDefault("store.in_memory", false)
	v.SetDefault("search.path", filepath.Join(dir, "search.db"))

	v.SetDefault("migration.batch_size", 200)
	v.SetDefault("migration.workers", 4)
	v.SetDefault("migration.max_novels", -1)
	v.SetDefault("migration.dry_run", false)
	v.SetDefault("migration.rebuild_index_after", true)
	for _, stage := range []string{"taxonomy", "content", "users", "ratings", "bookmarks", "comments", "reading_lists", "stats"} {
		v.SetDefault("migration.skip."+stage, false)
	}

	v.SetDefault("taxonomy.max_genres", 50)
	v.SetDefault("social.favorite_threshold", 3)
	v.SetDefault("sync.page_size", 500)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.tcp_addr", ":7070")

	// dev default (change for production)
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_issuer", "novelhub")
	v.SetDefault("auth.jwt_duration", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("report.path", "")
}

// NewViper returns a viper instance with defaults and NOVELHUB_* env overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the optional config file and decodes the settings.
func LoadConfig(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid config")

func (c Config) Validate() error {
	switch c.Legacy.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: legacy.driver %q (want sqlite3 or postgres)", ErrInvalidConfig, c.Legacy.Driver)
	}
	if strings.TrimSpace(c.Legacy.DSN) == "" {
		return fmt.Errorf("%w: legacy.dsn is required", ErrInvalidConfig)
	}
	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("%w: store.path is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Search.Path) == "" {
		return fmt.Errorf("%w: search.path is required", ErrInvalidConfig)
	}
	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("%w: migration.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Migration.Workers <= 0 {
		return fmt.Errorf("%w: migration.workers must be positive", ErrInvalidConfig)
	}
	if c.Migration.MaxNovels < -1 {
		return fmt.Errorf("%w: migration.max_novels must be -1, 0 or positive", ErrInvalidConfig)
	}
	if c.Taxonomy.MaxGenres < 2 {
		return fmt.Errorf("%w: taxonomy.max_genres must be at least 2", ErrInvalidConfig)
	}
	if c.Social.FavoriteThreshold < 0 {
		return fmt.Errorf("%w: social.favorite_threshold must not be negative", ErrInvalidConfig)
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("%w: sync.page_size must be positive", ErrInvalidConfig)
	}
	return nil
}
