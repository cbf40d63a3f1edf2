package config

import (
	"os"                            // For environment variables
	"strconv"                       // For string to int conversion
	"strings"                       // For list parsing
	"time"                          // For durations
	"wallet_ledger/internal/ledger" // For engine policy

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // For monetary settings
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	AdminUsername string // Administrator seeded by the migrate command, empty skips
	AdminPassword string // Password of the seeded administrator

	Ledger LedgerConfig // Wallet ledger policy

	NotifyBuffer       int      // Notification queue size
	NotifyRedisChannel string   // Pub/sub channel for transaction events, empty disables
	NotifyKafkaBrokers []string // Kafka brokers for transaction events, empty disables
	NotifyKafkaTopic   string   // Kafka topic for transaction events
	LockBackend        string   // "db" (row locks only) or "redis" (adds distributed wallet locks)
}

// LedgerConfig holds the money-movement policy
type LedgerConfig struct {
	InitialWalletBalance decimal.Decimal // Balance seeded into new wallets
	AgentCommissionRate  decimal.Decimal // Fraction of cash-in/cash-out paid to the agent
	DailyLimitAmount     decimal.Decimal // Max debited per calendar day
	DailyLimitCount      int             // Max debits per calendar day
	MonthlyLimitAmount   decimal.Decimal // Max debited per calendar month
	MonthlyLimitCount    int             // Max debits per calendar month
	UnitTimeout          time.Duration   // Upper bound on one atomic unit
}

// Ledger defaults, used when a variable is absent, malformed or negative
var (
	DefaultInitialWalletBalance = decimal.NewFromInt(50)
	DefaultAgentCommissionRate  = decimal.RequireFromString("0.005")
	DefaultDailyLimitAmount     = decimal.NewFromInt(10000)
	DefaultMonthlyLimitAmount   = decimal.NewFromInt(50000)
)

// Ledger count and timing defaults
const (
	DefaultDailyLimitCount   = 5
	DefaultMonthlyLimitCount = 20
	DefaultUnitTimeout       = 5 * time.Second
	DefaultNotifyBuffer      = 256
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),     // Application port
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     os.Getenv("DB_HOST"),           // Database host
		DBPort:     os.Getenv("DB_PORT"),           // Database port
		DBName:     os.Getenv("DB_NAME"),           // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:  os.Getenv("REDIS_ADDR"),        // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),        // Redis password
		RedisDB:    redisDB,                        // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true", // Is production environment

		AdminUsername: os.Getenv("ADMIN_USERNAME"), // Seeded administrator
		AdminPassword: os.Getenv("ADMIN_PASSWORD"), // Seeded administrator password

		Ledger: LedgerConfig{
			InitialWalletBalance: getDecimal("INITIAL_WALLET_BALANCE", DefaultInitialWalletBalance),
			AgentCommissionRate:  getDecimal("AGENT_COMMISSION_RATE", DefaultAgentCommissionRate),
			DailyLimitAmount:     getDecimal("DAILY_TRANSACTION_LIMIT_AMOUNT", DefaultDailyLimitAmount),
			DailyLimitCount:      getInt("DAILY_TRANSACTION_LIMIT_COUNT", DefaultDailyLimitCount),
			MonthlyLimitAmount:   getDecimal("MONTHLY_TRANSACTION_LIMIT_AMOUNT", DefaultMonthlyLimitAmount),
			MonthlyLimitCount:    getInt("MONTHLY_TRANSACTION_LIMIT_COUNT", DefaultMonthlyLimitCount),
			UnitTimeout:          getDuration("UNIT_TIMEOUT", DefaultUnitTimeout),
		},

		NotifyBuffer:       getInt("NOTIFY_BUFFER", DefaultNotifyBuffer),
		NotifyRedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", "wallet:transactions"),
		NotifyKafkaBrokers: getList("NOTIFY_KAFKA_BROKERS"),
		NotifyKafkaTopic:   getEnv("NOTIFY_KAFKA_TOPIC", "wallet.transactions"),
		LockBackend:        strings.ToLower(getEnv("LOCK_BACKEND", "db")),
	}
}

// getEnv returns the variable or fallback when unset
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// getDecimal parses a non-negative decimal, falling back on absence or error
func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d.IsNegative() {
		return fallback
	}
	return d
}

// getInt parses a non-negative integer, falling back on absence or error
func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// getDuration parses a positive duration such as "5s"
func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// getList splits a comma separated variable, dropping empty items
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// EngineConfig converts the ledger settings into the engine's policy
func (c *Config) EngineConfig() ledger.Config {
	return ledger.Config{
		Limits: ledger.Limits{
			DailyAmount:   c.Ledger.DailyLimitAmount,
			DailyCount:    c.Ledger.DailyLimitCount,
			MonthlyAmount: c.Ledger.MonthlyLimitAmount,
			MonthlyCount:  c.Ledger.MonthlyLimitCount,
		},
		CommissionRate: c.Ledger.AgentCommissionRate,
		UnitTimeout:    c.Ledger.UnitTimeout,
	}
}
