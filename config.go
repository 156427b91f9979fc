package diag

import (
	"os"
	"strconv"
	"time"
)

// Config хранит модель конфигурации подключения к UUT
type Config struct {
	Address        string // host:port консоли (telnet)
	SimScript      string // если задан, вместо telnet используется симулятор
	Serial         string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
	SettleDelay    time.Duration
	Prompt         string // регулярное выражение приглашения
	LogLevel       string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	address := os.Getenv("UUT_ADDRESS")
	if address == "" {
		address = "192.168.0.10:2001"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		Address:        address,
		SimScript:      os.Getenv("UUT_SIM_SCRIPT"),
		Serial:         os.Getenv("UUT_SERIAL"),
		DialTimeout:    envMillis("UUT_DIAL_TIMEOUT_MS", 5000),
		CommandTimeout: envMillis("UUT_COMMAND_TIMEOUT_MS", 10000),
		RetryAttempts:  envInt("UUT_RETRY_ATTEMPTS", 3),
		RetryBackoff:   envMillis("UUT_RETRY_BACKOFF_MS", 1000),
		SettleDelay:    envMillis("UUT_SETTLE_DELAY_MS", 100),
		Prompt:         os.Getenv("UUT_PROMPT"),
		LogLevel:       logLevel,
	}
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envMillis(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Millisecond
}
