package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string

	JWTSecret string

	AccessTokenMaxAge  int
	RefreshTokenMaxAge int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	RedisURL string

	// Seed accounts
	AdminEmail    string
	AdminPassword string

	// Location used for calendar-day boundaries. Defaults to time.Local.
	Location *time.Location

	ReminderEnabled  bool
	ReminderInterval time.Duration
	ReminderMessage  string

	FirebaseProjectID   string
	FirebaseClientEmail string
	FirebasePrivateKey  string

	MetricsUser string
	MetricsPass string

	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxy makes the rate limiter key on the X-Forwarded-For entry
	// appended by a single reverse proxy. Leave off when clients connect directly.
	TrustProxy bool

	WorkerCount int
}

// FirebaseConfigured reports whether all FCM credentials are present.
func (c *Config) FirebaseConfigured() bool {
	return c.FirebaseProjectID != "" && c.FirebaseClientEmail != "" && c.FirebasePrivateKey != ""
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	accessTokenMaxAge, err := strconv.Atoi(os.Getenv("ACCESS_TOKEN_MAX_AGE"))
	if err != nil || accessTokenMaxAge <= 0 {
		accessTokenMaxAge = 3600
	}

	refreshTokenMaxAge, err := strconv.Atoi(os.Getenv("REFRESH_TOKEN_MAX_AGE"))
	if err != nil || refreshTokenMaxAge <= 0 {
		refreshTokenMaxAge = 2592000
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "require"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	loc := time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Printf("Invalid TIMEZONE %q, falling back to local time: %v", tz, err)
		} else {
			loc = l
		}
	}

	reminderInterval, err := time.ParseDuration(os.Getenv("REMINDER_INTERVAL"))
	if err != nil || reminderInterval <= 0 {
		reminderInterval = time.Minute
	}

	reminderMessage := os.Getenv("REMINDER_MESSAGE")
	if reminderMessage == "" {
		reminderMessage = "오늘의 챌린지를 잊지 마세요! 💪"
	}

	rateLimitRPS, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rateLimitRPS <= 0 {
		rateLimitRPS = 5
	}

	rateLimitBurst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || rateLimitBurst <= 0 {
		rateLimitBurst = 30
	}

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount <= 0 {
		workerCount = 2
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  sslMode,

		ServerPort: serverPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		AccessTokenMaxAge:  accessTokenMaxAge,
		RefreshTokenMaxAge: refreshTokenMaxAge,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		RedisURL: redisURL,

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		Location: loc,

		ReminderEnabled:  os.Getenv("REMINDER_ENABLED") != "false",
		ReminderInterval: reminderInterval,
		ReminderMessage:  reminderMessage,

		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseClientEmail: os.Getenv("FIREBASE_CLIENT_EMAIL"),
		FirebasePrivateKey:  os.Getenv("FIREBASE_PRIVATE_KEY"),

		MetricsUser: os.Getenv("METRICS_USER"),
		MetricsPass: os.Getenv("METRICS_PASS"),

		RateLimitRPS:   rateLimitRPS,
		RateLimitBurst: rateLimitBurst,
		TrustProxy:     os.Getenv("TRUST_PROXY") == "true",

		WorkerCount: workerCount,
	}, nil
}
