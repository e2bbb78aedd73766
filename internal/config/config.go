package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Queue engine
	AppointmentsTable    string
	ClinicsTable         string
	ClinicCodesTable     string
	DefaultSessionStride int
	AllocateMaxRetries   int

	// Reminder dispatch
	SchedulerSecret     string
	ReminderSendTimeout time.Duration
	ReminderLockTTL     time.Duration
	OpsReportEmail      string

	// Inbound chat channel
	ChatVerifyToken   string
	ChatAppSecret     string
	ChatAccessToken   string
	ChatAPIBaseURL    string
	ChatPhoneNumberID string
	ChatSendTimeout   time.Duration
	ChatMaxRetries    int
	BookingLinkBase   string

	// Messaging queue
	UseMemoryQueue  bool
	WorkerCount     int
	InboundQueueURL string

	// Postgres (dispatch log, processed events)
	DatabaseURL string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis (code cache, dispatch locks)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// SES fallback (used when SendGrid is not configured)
	SESFromEmail string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		AppointmentsTable:    getEnv("APPOINTMENTS_TABLE", "klinicq_appointments"),
		ClinicsTable:         getEnv("CLINICS_TABLE", "klinicq_clinics"),
		ClinicCodesTable:     getEnv("CLINIC_CODES_TABLE", "klinicq_clinic_codes"),
		DefaultSessionStride: getEnvAsInt("DEFAULT_SESSION_STRIDE", 1000),
		AllocateMaxRetries:   getEnvAsInt("ALLOCATE_MAX_RETRIES", 5),

		SchedulerSecret:     getEnv("SCHEDULER_SECRET", ""),
		ReminderSendTimeout: getEnvAsDuration("REMINDER_SEND_TIMEOUT", 30*time.Second),
		ReminderLockTTL:     getEnvAsDuration("REMINDER_LOCK_TTL", 2*time.Minute),
		OpsReportEmail:      getEnv("OPS_REPORT_EMAIL", ""),

		ChatVerifyToken:   getEnv("CHAT_VERIFY_TOKEN", ""),
		ChatAppSecret:     getEnv("CHAT_APP_SECRET", ""),
		ChatAccessToken:   getEnv("CHAT_ACCESS_TOKEN", ""),
		ChatAPIBaseURL:    getEnv("CHAT_API_BASE_URL", ""),
		ChatPhoneNumberID: getEnv("CHAT_PHONE_NUMBER_ID", ""),
		ChatSendTimeout:   getEnvAsDuration("CHAT_SEND_TIMEOUT", 10*time.Second),
		ChatMaxRetries:    getEnvAsInt("CHAT_MAX_RETRIES", 3),
		BookingLinkBase:   getEnv("BOOKING_LINK_BASE", ""),

		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		InboundQueueURL: getEnv("INBOUND_QUEUE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "KlinicQ"),

		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
