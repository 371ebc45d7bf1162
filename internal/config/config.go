package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	MigrateOnStart  bool
}

// RedisConfig is optional: an empty Addr switches rate limiting and the
// mail outbox to their in-process fallbacks.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketLogo string
	PublicURL  string
	UseSSL     bool
	Region     string
	MaxLogo    int64
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	ResetTokenTTL    time.Duration
	BcryptCost       int
}

type AppInfo struct {
	Name       string
	URL        string
	APIBaseURL string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type MailConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	SendTimeout   time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	Prefix  string
}

type JobsConfig struct {
	PurgeSchedule string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	TLS              TLSConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	App              AppInfo
	SMTP             SMTPConfig
	Mail             MailConfig
	RateLimit        RateLimitConfig
	Jobs             JobsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

const MinBcryptCost = 12

func Load() (*AppConfig, error) {
	// .env is a development convenience; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("PROPEASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Security.JWTAccessSecret == "" || c.Security.JWTRefreshSecret == "" {
		return errors.New("config: security.jwtaccesssecret and security.jwtrefreshsecret are required")
	}
	if c.Security.JWTAccessSecret == c.Security.JWTRefreshSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}
	if c.Security.BcryptCost < MinBcryptCost {
		return fmt.Errorf("config: security.bcryptcost must be at least %d", MinBcryptCost)
	}
	if c.App.URL == "" {
		return errors.New("config: app.url is required")
	}
	return nil
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3001)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.migrateonstart", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketlogo", "propease-logos")
	v.SetDefault("storage.publicurl", "")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxlogo", 2<<20)

	v.SetDefault("security.jwtaccesssecret", "")
	v.SetDefault("security.jwtrefreshsecret", "")
	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "168h") // 7 days
	v.SetDefault("security.resettokenttl", "1h")
	v.SetDefault("security.bcryptcost", MinBcryptCost)

	v.SetDefault("app.name", "PropEase")
	v.SetDefault("app.url", "http://localhost:5173")
	v.SetDefault("app.apibaseurl", "http://localhost:3001/api")

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@propease.com")
	v.SetDefault("smtp.timeout", "15s")

	v.SetDefault("mail.stream", "mail:outbox")
	v.SetDefault("mail.group", "mailers")
	v.SetDefault("mail.consumer", "mailer-1")
	v.SetDefault("mail.claiminterval", "30s")
	v.SetDefault("mail.sendtimeout", "30s")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.prefix", "rl")

	v.SetDefault("jobs.purgeschedule", "0 */15 * * * *")

	v.SetDefault("logging.level", "debug")

	v.SetDefault("allowcorsorigins", []string{})
}
