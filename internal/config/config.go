package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr         string
		AllowOrigins []string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret           string
		MagicLinkTTL        time.Duration
		SessionTTL          time.Duration
		ChallengeTTL        time.Duration
		SingleUseMagicLinks bool
		PlaceholderDomain   string
		AppName             string
	}
	Mail struct {
		Driver    string
		From      string
		BaseURL   string
		Bucket    string
		KeyPrefix string
	}
	AWS struct {
		Region   string
		Profile  string
		Endpoint string
	}
	Log struct {
		Level string
		JSON  bool
	}
}

const (
	MailDriverLog = "log"
	MailDriverSES = "ses"
	MailDriverS3  = "s3"
)

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("AUTHGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.alloworigins", []string{})
	v.SetDefault("database.path", "data/authgate.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.magiclinkttl", "10m")
	v.SetDefault("auth.sessionttl", "168h")
	v.SetDefault("auth.challengettl", "5m")
	v.SetDefault("auth.singleusemagiclinks", true)
	v.SetDefault("auth.placeholderdomain", "wallet.local")
	v.SetDefault("auth.appname", "authgate")
	v.SetDefault("mail.driver", MailDriverLog)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.baseurl", "http://localhost:3000")
	v.SetDefault("mail.bucket", "")
	v.SetDefault("mail.keyprefix", "authgate-mail")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required")
	}
	if c.Auth.MagicLinkTTL <= 0 || c.Auth.SessionTTL <= 0 || c.Auth.ChallengeTTL <= 0 {
		return fmt.Errorf("auth token lifetimes must be positive")
	}
	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverSES:
		if c.Mail.From == "" {
			return fmt.Errorf("mail.from is required for the ses driver")
		}
	case MailDriverS3:
		if c.Mail.Bucket == "" || c.Mail.From == "" {
			return fmt.Errorf("mail.bucket and mail.from are required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	return nil
}

// loadDotEnv exports variables from path without overriding ones already set.
func loadDotEnv(path string) {
	_ = godotenv.Load(path) // optional file
}
