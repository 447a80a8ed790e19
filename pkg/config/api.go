package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store backends supported by the API service.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// GoogleCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment             string
	Addr                    string
	LogLevel                string
	FirebaseProjectID       string
	GoogleCredentials       string
	FirebaseCertsURL        string
	BotSecretKey            string
	VercelToken             string
	VercelAPIURL            string
	VercelTeamID            string
	VercelDomain            string
	VercelTimeout           time.Duration
	VercelMaxAttempts       int
	GoCloudURL              string
	GoCloudTimeout          time.Duration
	StoreBackend            string
	DatabaseURL             string
	MigrationsDir           string
	TokenCacheTTL           time.Duration
	TokenCacheRedisAddr     string
	TokenCacheRedisPass     string
	TokenCacheRedisDB       int
	MaxUploadBytes          int64
	CORSAllowedOrigins      []string
	DeleteRemoteDeployments bool
	ShutdownTimeout         time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	credentials := GetString("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	if strings.TrimSpace(credentials) == "" {
		credentials = GetString("GOOGLE_APPLICATION_CREDENTIALS", "")
	}
	return APIConfig{
		Environment:             GetString("APP_ENV", "development"),
		Addr:                    GetString("API_ADDR", ":4000"),
		LogLevel:                GetString("LOG_LEVEL", "info"),
		FirebaseProjectID:       GetString("FIREBASE_PROJECT_ID", ""),
		GoogleCredentials:       strings.TrimSpace(credentials),
		FirebaseCertsURL:        GetString("FIREBASE_CERTS_URL", GoogleCertsURL),
		BotSecretKey:            GetString("BOT_SECRET_KEY", ""),
		VercelToken:             GetString("VERCEL_TOKEN", ""),
		VercelAPIURL:            GetString("VERCEL_API_URL", "https://api.vercel.com"),
		VercelTeamID:            GetString("VERCEL_TEAM_ID", ""),
		VercelDomain:            GetString("VERCEL_DOMAIN", "vercel.app"),
		VercelTimeout:           GetSeconds("VERCEL_TIMEOUT_SECONDS", 30),
		VercelMaxAttempts:       GetInt("VERCEL_MAX_ATTEMPTS", 3),
		GoCloudURL:              GetString("GOCLOUD_URL", "https://www.gocloud.web.id/deploy"),
		GoCloudTimeout:          GetSeconds("GOCLOUD_TIMEOUT_SECONDS", 60),
		StoreBackend:            strings.ToLower(GetString("STORE_BACKEND", StoreFirestore)),
		DatabaseURL:             GetString("DATABASE_URL", ""),
		MigrationsDir:           GetString("DB_MIGRATIONS_DIR", ""),
		TokenCacheTTL:           GetSeconds("TOKEN_CACHE_TTL_SECONDS", 300),
		TokenCacheRedisAddr:     GetString("TOKEN_CACHE_REDIS_ADDR", ""),
		TokenCacheRedisPass:     GetString("TOKEN_CACHE_REDIS_PASSWORD", ""),
		TokenCacheRedisDB:       GetInt("TOKEN_CACHE_REDIS_DB", 0),
		MaxUploadBytes:          int64(GetInt("MAX_UPLOAD_MB", 10)) << 20,
		CORSAllowedOrigins:      GetList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DeleteRemoteDeployments: GetBool("DELETE_REMOTE_DEPLOYMENTS", true),
		ShutdownTimeout:         GetSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}
}

// Validate reports configuration that would leave the service unable to start.
func (c APIConfig) Validate() error {
	var problems []error
	switch c.StoreBackend {
	case StoreFirestore:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			problems = append(problems, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if strings.TrimSpace(c.FirebaseProjectID) == "" {
		problems = append(problems, errors.New("FIREBASE_PROJECT_ID is required"))
	}
	if strings.TrimSpace(c.VercelToken) == "" {
		problems = append(problems, errors.New("VERCEL_TOKEN is required"))
	}
	if c.VercelMaxAttempts < 1 {
		problems = append(problems, errors.New("VERCEL_MAX_ATTEMPTS must be at least 1"))
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	return errors.Join(problems...)
}
