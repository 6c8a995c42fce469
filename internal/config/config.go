package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/pkg/logger"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Schedule ScheduleConfig `json:"schedule"`
	Auth     AuthConfig     `json:"auth"`
	Log      LogConfig      `json:"log"`
}

// TelegramConfig содержит настройки Telegram бота.
// Пустой токен отключает бота, пустой WebhookURL включает long polling.
type TelegramConfig struct {
	Token       string  `json:"-"`
	WebhookURL  string  `json:"webhook_url"`
	SecretToken string  `json:"-"`
	AdminIDs    []int64 `json:"admin_ids"`
}

// Enabled сообщает, что бот настроен
func (t TelegramConfig) Enabled() bool {
	return t.Token != ""
}

// IsAdmin проверяет, что чат принадлежит администратору
func (t TelegramConfig) IsAdmin(chatID int64) bool {
	for _, id := range t.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	// RateLimit: запросов в минуту с одного адреса, 0 отключает ограничение
	RateLimit int `json:"rate_limit"`
}

// DatabaseConfig содержит настройки хранилища
type DatabaseConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
}

// ScheduleConfig содержит настройки расписания
type ScheduleConfig struct {
	Timezone      string                 `json:"timezone"`
	Location      *time.Location         `json:"-"`
	SessionsFile  string                 `json:"sessions_file"`
	Template      models.SessionTemplate `json:"template"`
	CutoffWeekday time.Weekday           `json:"cutoff_weekday"`
	CutoffTime    models.Clock           `json:"cutoff_time"`
	RolloverCron  string                 `json:"rollover_cron"`
	ReminderMins  int                    `json:"reminder_mins"`
	UpcomingDays  int                    `json:"upcoming_days"`
	PastLimit     int                    `json:"past_limit"`
}

// AuthConfig содержит настройки доступа к административным операциям
type AuthConfig struct {
	// File: файл вида username:argon2id-hash; пустой путь отключает проверку
	File string `json:"file"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level string `json:"level"`
}

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Load загружает конфигурацию из переменных окружения и файла .env
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", logger.Error(err))
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:       os.Getenv("TELEGRAM_TOKEN"),
			WebhookURL:  os.Getenv("WEBHOOK_URL"),
			SecretToken: os.Getenv("TELEGRAM_SECRET_TOKEN"),
			AdminIDs:    getEnvAsInt64List("ADMIN_IDS"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RateLimit:    getEnvAsInt("RATE_LIMIT", 60),
		},
		Database: DatabaseConfig{
			Driver: getEnv("STORE_DRIVER", DriverSQLite),
			Path:   getEnv("DB_FILE", "sessionboard.db"),
		},
		Schedule: ScheduleConfig{
			Timezone:     getEnv("TIMEZONE", "Local"),
			SessionsFile: os.Getenv("SESSIONS_FILE"),
			RolloverCron: getEnv("ROLLOVER_CRON", "31 11 * * 4"),
			ReminderMins: getEnvAsInt("REMINDER_MINS", 15),
			UpcomingDays: getEnvAsInt("UPCOMING_DAYS", 30),
			PastLimit:    getEnvAsInt("PAST_LIMIT", 3),
		},
		Auth: AuthConfig{
			File: os.Getenv("AUTH_FILE"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.resolve(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// resolve разбирает значения, которые нельзя хранить строками
func (c *Config) resolve() error {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Schedule.Timezone, err)
	}
	c.Schedule.Location = loc

	c.Schedule.Template = models.DefaultTemplate()
	if c.Schedule.SessionsFile != "" {
		tmpl, err := LoadTemplate(c.Schedule.SessionsFile)
		if err != nil {
			return err
		}
		c.Schedule.Template = tmpl
	}

	weekday, err := ParseWeekday(getEnv("CUTOFF_WEEKDAY", c.Schedule.Template.Weekday.String()))
	if err != nil {
		return fmt.Errorf("invalid CUTOFF_WEEKDAY: %w", err)
	}
	c.Schedule.CutoffWeekday = weekday

	// По умолчанию граница недели: конец последнего окна
	defaultCutoff := models.Clock{Hour: 11, Minute: 30}
	if n := len(c.Schedule.Template.Windows); n > 0 {
		defaultCutoff = c.Schedule.Template.Windows[n-1].End
	}
	cutoff, err := models.ParseClock(getEnv("CUTOFF_TIME", defaultCutoff.String()))
	if err != nil {
		return fmt.Errorf("invalid CUTOFF_TIME: %w", err)
	}
	c.Schedule.CutoffTime = cutoff

	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.WebhookURL != "" && c.Telegram.Token == "" {
		return fmt.Errorf("WEBHOOK_URL requires TELEGRAM_TOKEN")
	}
	if c.Telegram.WebhookURL != "" && !strings.HasPrefix(c.Telegram.WebhookURL, "https://") {
		return fmt.Errorf("WEBHOOK_URL must use https")
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Server.Port, err)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must be non-negative")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("DB_FILE is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (expected sqlite or memory)", c.Database.Driver)
	}

	if err := ValidateTemplate(c.Schedule.Template); err != nil {
		return err
	}

	if _, err := cron.ParseStandard(c.Schedule.RolloverCron); err != nil {
		return fmt.Errorf("invalid ROLLOVER_CRON: %w", err)
	}
	if c.Schedule.ReminderMins < 0 {
		return fmt.Errorf("REMINDER_MINS must be non-negative")
	}
	if c.Schedule.UpcomingDays <= 0 {
		return fmt.Errorf("UPCOMING_DAYS must be positive")
	}
	if c.Schedule.PastLimit < 0 {
		return fmt.Errorf("PAST_LIMIT must be non-negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.Log.Level)
	}

	return nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvAsInt64List разбирает список чисел через запятую, пропуская мусор
func getEnvAsInt64List(key string) []int64 {
	var out []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
