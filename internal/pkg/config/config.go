package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ardanlabs/conf/v3"

	"github.com/luminapay/schoolpay/internal/pkg/env"
)

// Prefix is prepended to every environment variable, e.g. SCHOOLPAY_DB_HOST.
const Prefix = "SCHOOLPAY"

// Config is the complete runtime configuration of the service.
type Config struct {
	conf.Version
	App struct {
		Env string `conf:"default:prod"`
	}
	Web struct {
		Host            string        `conf:"default:0.0.0.0"`
		Port            string        `conf:"default:4000"`
		ReadTimeout     time.Duration `conf:"default:10s"`
		WriteTimeout    time.Duration `conf:"default:20s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
		BodyLimit       int           `conf:"default:1048576"`
		CorsOrigins     string        `conf:"default:*"`
	}
	DB struct {
		User        string        `conf:"default:schoolpay"`
		Password    string        `conf:"default:schoolpay,mask"`
		Host        string        `conf:"default:127.0.0.1"`
		Port        string        `conf:"default:3306"`
		Name        string        `conf:"default:schoolpay"`
		MaxRetries  int           `conf:"default:5"`
		RetryDelay  time.Duration `conf:"default:5s"`
		AutoMigrate bool          `conf:"default:false"`
	}
	Cache struct {
		Host      string `conf:"default:localhost"`
		Port      int    `conf:"default:6379"`
		Password  string `conf:"mask"`
		DB        int    `conf:"default:0"`
		LimiterDB int    `conf:"default:1"`
	}
	Gateway struct {
		BaseURL     string        `conf:"default:https://api.payment-gateway.com"`
		APIKey      string        `conf:"mask"`
		PGKey       string        `conf:"mask"`
		SchoolID    string
		TokenSecret string        `conf:"default:change-me,mask"`
		TokenTTL    time.Duration `conf:"default:1h"`
		Timeout     time.Duration `conf:"default:15s"`
	}
	Webhook struct {
		Secret string `conf:"mask,help:HMAC-SHA256 secret for X-Webhook-Signature; empty disables the check"`
	}
	Archive struct {
		Bucket          string
		Region          string `conf:"default:us-east-1"`
		Endpoint        string
		AccessKeyID     string `conf:"mask"`
		SecretAccessKey string `conf:"mask"`
	}
	Jobs struct {
		Workers         int           `conf:"default:3"`
		OrphanSweep     string        `conf:"default:@every 5m"`
		OrphanAge       time.Duration `conf:"default:15m"`
		ArchiveBackfill string        `conf:"default:@every 30m"`
	}
	RateLimit struct {
		Max    int           `conf:"default:60"`
		Window time.Duration `conf:"default:1m"`
	}
	Log struct {
		Level  string `conf:"default:info"`
		Format string `conf:"default:json"`
	}
	Docs struct {
		SpecFile string `conf:"default:internal/api/v1/openapi.yml"`
	}
	Metrics struct {
		User     string `conf:"default:admin"`
		Password string `conf:"default:admin,mask"`
	}
}

// ErrHelpWanted is returned by Load when --help or --version was requested;
// the usage text has already been printed.
var ErrHelpWanted = errors.New("help wanted")

// Load reads .env files into the environment and parses the configuration.
func Load(build string) (Config, error) {
	env.SetupEnvFile()

	var cfg Config
	cfg.Version = conf.Version{
		Build: build,
		Desc:  "school payment gateway backend",
	}

	help, err := conf.Parse(Prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return cfg, ErrHelpWanted
		}
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// String renders the configuration with secrets masked.
func String(cfg Config) string {
	out, err := conf.String(&cfg)
	if err != nil {
		return err.Error()
	}
	return out
}

// Address returns the host:port the HTTP server listens on.
func (c Config) Address() string {
	return net.JoinHostPort(c.Web.Host, c.Web.Port)
}

// DSN returns the go-sql-driver/mysql data source name used by GORM.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.DB.User,
		c.DB.Password,
		net.JoinHostPort(c.DB.Host, c.DB.Port),
		c.DB.Name,
	)
}

// MigrateURL returns the golang-migrate database URL.
func (c Config) MigrateURL() string {
	return "mysql://" + c.DSN() + "&multiStatements=true"
}

// CacheAddress returns the Redis host:port.
func (c Config) CacheAddress() string {
	return net.JoinHostPort(c.Cache.Host, fmt.Sprint(c.Cache.Port))
}

// ArchiveEnabled reports whether raw webhook payloads are copied to S3.
func (c Config) ArchiveEnabled() bool {
	return c.Archive.Bucket != ""
}
