package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv" // optional .env loading for local development
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMongo  = "mongo"
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Store settings are only required for the driver
// that is selected.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	CORSOrigin   string // allowed CORS origin ("*" when unset)
	CookieSecure bool   // Secure flag on auth cookies
	UploadTmpDir string // where multipart uploads are staged before storage

	StoreDriver string // mongo | mysql | memory
	MongoURI    string // MongoDB connection string
	MongoDB     string // MongoDB database name
	DBUser      string // mysql username
	DBPass      string // mysql password (optional)
	DBHost      string // mysql host address
	DBPort      string // mysql port number
	DBName      string // mysql database name

	AccessSecret   string // secret used to sign access tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshSecret  string // secret used to sign refresh tokens
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	S3 S3Config

	RabbitURL   string // AMQP url for auth events; empty disables publishing
	AuditLogDir string // directory the audit consumer appends to
}

// S3Config describes the S3-compatible bucket that receives profile media.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string // custom endpoint (MinIO, R2); empty for AWS
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // base URL media is served from; derived when empty
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is applied first when
// present.  Missing required variables cause a fatal log message.
func Load() Config {
	_ = godotenv.Load() // absent .env is fine; real env always wins

	cfg := Config{
		Env:          must("APP_ENV"),
		Port:         getenv("APP_PORT", "8000"),
		CORSOrigin:   getenv("CORS_ORIGIN", "*"),
		CookieSecure: envBool("COOKIE_SECURE", true),
		UploadTmpDir: getenv("UPLOAD_TMP_DIR", filepath.Join(os.TempDir(), "videotube-uploads")),

		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", StoreMongo)),

		AccessSecret:   must("ACCESS_TOKEN_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshSecret:  must("REFRESH_TOKEN_SECRET"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 10),

		S3: S3Config{
			Bucket:        must("S3_BUCKET"),
			Region:        getenv("S3_REGION", "us-east-1"),
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		},

		RabbitURL:   firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
		AuditLogDir: getenv("AUDIT_LOG_DIR", "logs"),
	}

	switch cfg.StoreDriver {
	case StoreMongo:
		cfg.MongoURI = must("MONGODB_URI")
		cfg.MongoDB = getenv("MONGODB_DB", "videotube")
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StoreMemory:
	default:
		log.Fatalf("unknown STORE_DRIVER: %q", cfg.StoreDriver)
	}

	if cfg.AccessSecret == cfg.RefreshSecret {
		log.Fatalf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
