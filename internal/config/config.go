package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is read once at process start and passed down; nothing mutates it
// afterwards. Values come from config.yaml when the file exists and are
// always overridden by environment variables. Secrets are env-only.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Canvas      CanvasConfig      `yaml:"canvas"`
	Store       StoreConfig       `yaml:"store"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Windows     WindowsConfig     `yaml:"windows"`
	SFTP        SFTPConfig        `yaml:"sftp"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// OwnerHeader carries the already authenticated user id.
	OwnerHeader string `yaml:"owner_header" env:"OWNER_HEADER" env-default:"X-User-Id"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type CanvasConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CANVAS_REQUEST_TIMEOUT" env-default:"30s"`
	BranchTimeout  time.Duration `yaml:"branch_timeout" env:"CANVAS_BRANCH_TIMEOUT" env-default:"45s"`
	MaxWorkers     int           `yaml:"max_workers" env:"CANVAS_MAX_WORKERS" env-default:"0"`
	PerPage        int           `yaml:"per_page" env:"CANVAS_PER_PAGE" env-default:"100"`
	MaxPages       int           `yaml:"max_pages" env:"CANVAS_MAX_PAGES" env-default:"0"`
	// RetryAttempts is 1 by default: the fetcher does not retry unless asked.
	RetryAttempts int `yaml:"retry_attempts" env:"CANVAS_RETRY_ATTEMPTS" env-default:"1"`
}

type StoreConfig struct {
	Driver         string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"` // memory | postgres | redis
	PostgresURL    string `yaml:"-" env:"DATABASE_URL"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	RedisURL       string `yaml:"-" env:"REDIS_URL"`
	RedisPrefix    string `yaml:"redis_prefix" env:"REDIS_PREFIX" env-default:"canvas-sync:"`
}

type CredentialsConfig struct {
	// EncryptionKey seals API keys at rest: base64 32 bytes or a passphrase.
	EncryptionKey string `yaml:"-" env:"CREDENTIALS_KEY"`
	File          string `yaml:"file" env:"CREDENTIALS_FILE"`
	// Static credentials for local development.
	StaticBaseURL string `yaml:"static_base_url" env:"CANVAS_BASE_URL"`
	StaticAPIKey  string `yaml:"-" env:"CANVAS_API_KEY"`
}

type WindowsConfig struct {
	DashboardPast     time.Duration `yaml:"dashboard_past" env:"WINDOW_DASHBOARD_PAST" env-default:"168h"`
	DashboardFuture   time.Duration `yaml:"dashboard_future" env:"WINDOW_DASHBOARD_FUTURE" env-default:"720h"`
	AssignmentsPast   time.Duration `yaml:"assignments_past" env:"WINDOW_ASSIGNMENTS_PAST" env-default:"720h"`
	AssignmentsFuture time.Duration `yaml:"assignments_future" env:"WINDOW_ASSIGNMENTS_FUTURE" env-default:"1440h"`
	AnnouncementsPast time.Duration `yaml:"announcements_past" env:"WINDOW_ANNOUNCEMENTS_PAST" env-default:"336h"`
	UpcomingDays      int           `yaml:"upcoming_days" env:"WINDOW_UPCOMING_DAYS" env-default:"7"`
}

type SFTPConfig struct {
	Host      string `yaml:"host" env:"SFTP_HOST"`
	Port      int    `yaml:"port" env:"SFTP_PORT" env-default:"22"`
	User      string `yaml:"user" env:"SFTP_USER"`
	Password  string `yaml:"-" env:"SFTP_PASS"`
	RemoteDir string `yaml:"remote_dir" env:"SFTP_DIR" env-default:"/"`
	// KnownHosts enables host key checking when set.
	KnownHosts string `yaml:"known_hosts" env:"SFTP_KNOWN_HOSTS"`
}

// Enabled reports whether uploads are configured.
func (c SFTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.User) != ""
}

// Load reads path (usually config.yaml) with environment overrides. A missing
// file falls back to the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return errors.New("store driver postgres needs DATABASE_URL")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			return errors.New("store driver redis needs REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Canvas.PerPage < 1 || c.Canvas.PerPage > 100 {
		return fmt.Errorf("canvas per_page must be in [1,100], got %d", c.Canvas.PerPage)
	}
	if c.Canvas.MaxWorkers < 0 {
		return errors.New("canvas max_workers must not be negative")
	}
	if c.Windows.UpcomingDays < 1 {
		return errors.New("upcoming_days must be positive")
	}
	return nil
}
