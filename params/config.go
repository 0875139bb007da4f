package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Gateway struct {
	Addr string
	// RatePerMin caps order submissions per user.
	RatePerMin int
}

type Fanout struct {
	Addr string
}

type Execution struct {
	Workers          int
	Sandbox          bool
	DefaultFillPrice decimal.Decimal
}

type Venue struct {
	BaseURL string
	Timeout time.Duration
}

type Bus struct {
	// Mode selects the channel binding: "inproc" or "gossip".
	Mode       string
	ListenAddr string
	Bootstrap  []string
}

type Config struct {
	DataDir   string
	LogFile   string
	JWTSecret string
	Gateway   Gateway
	Fanout    Fanout
	Execution Execution
	Venue     Venue
	Bus       Bus
}

func Default() Config {
	return Config{
		DataDir:   "data",
		LogFile:   "data/node.log",
		JWTSecret: "default-secret",
		Gateway: Gateway{
			Addr:       ":8080",
			RatePerMin: 10,
		},
		Fanout: Fanout{
			Addr: ":8081",
		},
		Execution: Execution{
			Workers:          8,
			Sandbox:          true,
			DefaultFillPrice: decimal.NewFromInt(50000),
		},
		Venue: Venue{
			BaseURL: "https://testnet.binance.vision/api/v3",
			Timeout: 5 * time.Second,
		},
		Bus: Bus{
			Mode: "inproc",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)

	cfg.Gateway.Addr = getEnv("API_ADDR", cfg.Gateway.Addr)
	if v := os.Getenv("RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Gateway.RatePerMin = n
		}
	}

	cfg.Fanout.Addr = getEnv("WS_ADDR", cfg.Fanout.Addr)

	if v := os.Getenv("EXEC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Execution.Workers = n
		}
	}
	if v := os.Getenv("EXEC_SANDBOX"); v != "" {
		cfg.Execution.Sandbox = v == "true"
	}
	if v := os.Getenv("EXEC_DEFAULT_FILL_PRICE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.Execution.DefaultFillPrice = d
		}
	}

	cfg.Venue.BaseURL = getEnv("VENUE_BASE_URL", cfg.Venue.BaseURL)
	if v := os.Getenv("VENUE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Venue.Timeout = time.Duration(ms) * time.Millisecond
		}
	}

	cfg.Bus.Mode = getEnv("BUS_MODE", cfg.Bus.Mode)
	cfg.Bus.ListenAddr = getEnv("BUS_LISTEN", cfg.Bus.ListenAddr)
	if v := os.Getenv("BUS_BOOTSTRAP"); v != "" {
		cfg.Bus.Bootstrap = strings.Split(v, ",")
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
