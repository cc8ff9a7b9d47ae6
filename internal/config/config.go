package config

import (
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// URL, when set, takes precedence over the individual components.
type DatabaseConfig struct {
	URL                string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	AutoMigrate        bool
}

// MinIOConfig holds object storage settings for chat attachments.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an object store endpoint was configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// MailConfig holds Amazon SES settings for guardian notifications.
type MailConfig struct {
	Region    string
	FromEmail string
	FromName  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port               string
	BaseURL            string
	LogLevel           string
	Timezone           string
	AnonKey            string
	CORSAllowedOrigins string
	RateLimitMax       int
	TrustedProxies     []string
	ProxyHeader        string
	Database           DatabaseConfig
	MinIO              MinIOConfig
	Mail               MailConfig
}

var defaults = map[string]any{
	"port":                     "8080",
	"app_base_url":             "http://localhost:3000",
	"log_level":                "info",
	"timezone":                 "UTC",
	"cors_allowed_origins":     "*",
	"rate_limit_max":           20,
	"proxy_header":             "X-Real-IP",
	"db_port":                  "5432",
	"db_sslmode":               "disable",
	"db_max_open_conns":        10,
	"db_max_idle_conns":        5,
	"db_conn_max_lifetime_sec": 300,
	"db_auto_migrate":          false,
	"minio_use_ssl":            false,
	"ses_region":               "eu-west-1",
	"ses_from_name":            "Comfy Guardians",
}

// Load reads configuration from environment variables.
// A .env file is auto-loaded by cmd/api via _ "github.com/joho/godotenv/autoload";
// real environment variables take precedence.
func Load() *AppConfig {
	k := koanf.New(".")
	for key, v := range defaults {
		_ = k.Set(key, v)
	}

	// Keys are flattened: DB_MAX_OPEN_CONNS -> db_max_open_conns.
	// Empty variables are skipped so they never mask a default.
	_ = k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return strings.ToLower(key), value
	}), nil)

	return &AppConfig{
		Port:               k.String("port"),
		BaseURL:            strings.TrimRight(k.String("app_base_url"), "/"),
		LogLevel:           k.String("log_level"),
		Timezone:           k.String("timezone"),
		AnonKey:            k.String("supabase_anon_key"),
		CORSAllowedOrigins: k.String("cors_allowed_origins"),
		RateLimitMax:       k.Int("rate_limit_max"),
		TrustedProxies:     splitList(k.String("trusted_proxies")),
		ProxyHeader:        k.String("proxy_header"),
		Database: DatabaseConfig{
			URL:                k.String("database_url"),
			Host:               k.String("db_host"),
			Port:               k.String("db_port"),
			User:               k.String("db_user"),
			Password:           k.String("db_password"),
			Name:               k.String("db_name"),
			SSLMode:            k.String("db_sslmode"),
			MaxOpenConns:       k.Int("db_max_open_conns"),
			MaxIdleConns:       k.Int("db_max_idle_conns"),
			ConnMaxLifetimeSec: k.Int("db_conn_max_lifetime_sec"),
			AutoMigrate:        k.Bool("db_auto_migrate"),
		},
		MinIO: MinIOConfig{
			Endpoint:  k.String("minio_endpoint"),
			AccessKey: k.String("minio_access_key"),
			SecretKey: k.String("minio_secret_key"),
			Bucket:    k.String("minio_bucket"),
			UseSSL:    k.Bool("minio_use_ssl"),
		},
		Mail: MailConfig{
			Region:    k.String("ses_region"),
			FromEmail: k.String("ses_from_email"),
			FromName:  k.String("ses_from_name"),
		},
	}
}

// splitList parses a comma separated variable, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
