package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	JWTSecret     string
	JWTExpiresIn  string // minutes (legacy; used as default Access TTL)
	AdminEmail    string
	AdminPassword string
	AdminFullName string
	// Token settings
	AccessTokenTTLMinutes string // minutes
	RefreshTokenTTLDays   string // days
	RefreshJWTSecret      string

	// QR codes
	QRFolder        string
	QRBufferMinutes int
	PublicBaseURL   string
	Timezone        string
	QRRenderTimeout time.Duration
	QRPartialPolicy string // rollback | keep
	QRDailyWindow   bool
	QRStyleFile     string
	SeedHalls       []string

	// Logging
	LogDir        string
	LogMaxSizeMB  int
	LogMaxAgeDays int
	LogMaxBackups int
	LogCompress   bool
}

func Load() *Config {
	return &Config{
		Port:                  getenv("PORT", "8080"),
		DBHost:                getenv("DB_HOST", "localhost"),
		DBPort:                getenv("DB_PORT", "5432"),
		DBUser:                getenv("DB_USER", "postgres"),
		DBPassword:            getenv("DB_PASSWORD", "postgres"),
		DBName:                getenv("DB_NAME", "training_qr"),
		DBSSLMode:             getenv("DB_SSLMODE", "disable"),
		JWTSecret:             getenv("JWT_SECRET", "supersecret_change_me"),
		JWTExpiresIn:          getenv("JWT_EXPIRES_IN", "60"),
		AdminEmail:            getenv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:         getenv("ADMIN_PASSWORD", "admin123"),
		AdminFullName:         getenv("ADMIN_FULL_NAME", "Administrator"),
		AccessTokenTTLMinutes: getenv("ACCESS_TOKEN_TTL_MINUTES", getenv("JWT_EXPIRES_IN", "15")),
		RefreshTokenTTLDays:   getenv("REFRESH_TOKEN_TTL_DAYS", "30"),
		RefreshJWTSecret:      getenv("REFRESH_JWT_SECRET", getenv("JWT_SECRET", "supersecret_change_me")),

		QRFolder:        getenv("QR_FOLDER", "static/qrcodes"),
		QRBufferMinutes: getenvInt("QR_BUFFER_MINUTES", 15),
		PublicBaseURL:   getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		Timezone:        getenv("APP_TIMEZONE", "UTC"),
		QRRenderTimeout: time.Duration(getenvInt("QR_RENDER_TIMEOUT_SECONDS", 10)) * time.Second,
		QRPartialPolicy: strings.ToLower(getenv("QR_PARTIAL_POLICY", "rollback")),
		QRDailyWindow:   getenvBool("QR_DAILY_WINDOW", true),
		QRStyleFile:     getenv("QR_STYLE_FILE", ""),
		SeedHalls:       splitList(getenv("SEED_HALLS", "")),

		LogDir:        getenv("LOG_DIR", "logs"),
		LogMaxSizeMB:  getenvInt("LOG_MAX_SIZE_MB", 25),
		LogMaxAgeDays: getenvInt("LOG_MAX_AGE_DAYS", 7),
		LogMaxBackups: getenvInt("LOG_MAX_BACKUPS", 5),
		LogCompress:   getenvBool("LOG_COMPRESS", false),
	}
}

// Location resolves APP_TIMEZONE, the zone program dates and times are entered in.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// QRBuffer is how long before the first session the codes open. It must be positive.
func (c *Config) QRBuffer() (time.Duration, error) {
	if c.QRBufferMinutes <= 0 {
		return 0, fmt.Errorf("QR_BUFFER_MINUTES must be positive, got %d", c.QRBufferMinutes)
	}
	return time.Duration(c.QRBufferMinutes) * time.Minute, nil
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: %s=%q is not a boolean, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
