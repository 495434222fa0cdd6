package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret  string
		Issuer     string
		VerifyTTL  time.Duration
		ResetTTL   time.Duration
		SessionTTL time.Duration
		BcryptCost int
	}
	Mail struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
		// BaseURL prefixes the links put into verification and reset emails.
		BaseURL string
	}
	Catalog struct {
		ClientID     string
		ClientSecret string
		TokenURL     string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("STORYTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required (STORYTIME_AUTH_JWTSECRET)")
	}
	if c.Mail.Host != "" && c.Mail.From == "" {
		return fmt.Errorf("mail.from is required when mail.host is set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// every key needs a default so AutomaticEnv can resolve it during Unmarshal
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/storytime.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "storytime")
	v.SetDefault("auth.verifyttl", 2*time.Hour)
	v.SetDefault("auth.resetttl", 2*time.Hour)
	v.SetDefault("auth.sessionttl", 30*24*time.Hour)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.baseurl", "http://localhost:8080")
	v.SetDefault("catalog.clientid", "")
	v.SetDefault("catalog.clientsecret", "")
	v.SetDefault("catalog.tokenurl", "https://accounts.spotify.com/api/token")
	v.SetDefault("log.level", "info")
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
