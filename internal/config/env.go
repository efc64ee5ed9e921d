package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv returns a copy of base with CALBILL_* overrides applied.
func FromEnv(base *Config) *Config {
	cfg := *base
	if v, ok := getEnvString("CALBILL_DATABASE_PATH"); ok {
		cfg.DatabasePath = v
	}
	if v, ok := getEnvString("CALBILL_CREDENTIALS_DIR"); ok {
		cfg.CredentialsDir = v
	}
	if v, ok := getEnvString("CALBILL_INVOICES_DIR"); ok {
		cfg.InvoicesDir = v
	}
	if v, ok := getEnvString("CALBILL_CURRENCY"); ok {
		cfg.Currency = v
	}
	if v, ok := getEnvString("CALBILL_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvString("CALBILL_CALENDAR_ID"); ok {
		cfg.CalendarID = v
	}
	if v, ok := getEnvString("CALBILL_ICS_SOURCE"); ok {
		cfg.ICSSource = v
	}
	if v, ok := getEnvInt("CALBILL_DUE_DAYS"); ok && v >= 0 {
		cfg.DueDays = v
	}
	if v, ok := getEnvString("CALBILL_WATCH_CRON"); ok {
		cfg.WatchCron = v
	}
	if v, ok := getEnvString("CALBILL_PDF_TIMEOUT"); ok {
		cfg.PDFTimeout = v
	}
	if v, ok := getEnvString("CALBILL_CHROME_PATH"); ok {
		cfg.ChromePath = v
	}
	if v, ok := getEnvString("CALBILL_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := getEnvString("CALBILL_LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	return &cfg
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", false
	}
	return raw, true
}

func getEnvInt(name string) (int, bool) {
	raw, ok := getEnvString(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
