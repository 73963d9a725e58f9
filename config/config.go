package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"blister-inspector/internal/domain/entity"
)

// Config содержит настройки линии, прочитанные из окружения.
type Config struct {
	LogLevel string

	CameraDevice         string
	ParamsPath           string
	ParamsReloadInterval time.Duration

	SerialPort       string
	SerialBaud       int
	ActuatorInterval time.Duration
	CommandTokens    entity.CommandTokens

	ClassifierAddr    string
	ClassifyTimeout   time.Duration
	ClassifyImageSize int
	JPEGQuality       int

	SettleDelay time.Duration
	Cooldown    time.Duration

	DatabasePath  string
	DashboardAddr string
	NotifyQueue   int

	TelegramToken  string
	TelegramChatID int64

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

// Load читает конфигурацию из окружения и .env. Некорректные значения
// возвращаются ошибкой, а не заменяются значениями по умолчанию.
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var env envLoader

	tokens := entity.DefaultCommandTokens()
	tokens[entity.CommandHold] = env.getEnv("TOKEN_HOLD", tokens[entity.CommandHold])
	tokens[entity.CommandAdvance] = env.getEnv("TOKEN_ADVANCE", tokens[entity.CommandAdvance])
	tokens[entity.CommandAccept] = env.getEnv("TOKEN_ACCEPT", tokens[entity.CommandAccept])
	tokens[entity.CommandReject] = env.getEnv("TOKEN_REJECT", tokens[entity.CommandReject])

	timing := entity.DefaultTiming()

	cfg := &Config{
		LogLevel: env.getEnv("LOG_LEVEL", "info"),

		CameraDevice:         env.getEnv("CAMERA_DEVICE", "0"),
		ParamsPath:           env.getEnv("PARAMS_PATH", ""),
		ParamsReloadInterval: env.getEnvAsDuration("PARAMS_RELOAD_INTERVAL", time.Second),

		SerialPort:       env.getEnv("SERIAL_PORT", ""),
		SerialBaud:       env.getEnvAsInt("SERIAL_BAUD", 115200),
		ActuatorInterval: env.getEnvAsDuration("ACTUATOR_INTERVAL", 10*time.Millisecond),
		CommandTokens:    tokens,

		ClassifierAddr:    env.getEnv("CLASSIFIER_ADDR", ":8765"),
		ClassifyTimeout:   env.getEnvAsDuration("CLASSIFY_TIMEOUT", 2*time.Second),
		ClassifyImageSize: env.getEnvAsInt("CLASSIFY_IMAGE_SIZE", 224),
		JPEGQuality:       env.getEnvAsInt("JPEG_QUALITY", 90),

		SettleDelay: env.getEnvAsDuration("SETTLE_DELAY", timing.Settle),
		Cooldown:    env.getEnvAsDuration("COOLDOWN", timing.Cooldown),

		DatabasePath:  env.getEnv("DATABASE_PATH", ""),
		DashboardAddr: env.getEnv("DASHBOARD_ADDR", ""),
		NotifyQueue:   env.getEnvAsInt("NOTIFY_QUEUE", 32),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: env.getEnvAsInt64("TELEGRAM_CHAT_ID", 0),

		MQTTBroker:   env.getEnv("MQTT_BROKER", ""),
		MQTTTopic:    env.getEnv("MQTT_TOPIC", "blister/inspections"),
		MQTTClientID: env.getEnv("MQTT_CLIENT_ID", "blister-inspector"),
	}

	if err := env.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Timing возвращает задержки цикла.
func (c *Config) Timing() entity.Timing {
	return entity.Timing{Settle: c.SettleDelay, Cooldown: c.Cooldown}
}

// Validate сообщает о настройках, с которыми контроллер не может стартовать.
func (c *Config) Validate() error {
	var errs []error

	if c.SerialBaud <= 0 {
		errs = append(errs, fmt.Errorf("SERIAL_BAUD must be positive, got %d", c.SerialBaud))
	}
	if c.ActuatorInterval <= 0 {
		errs = append(errs, fmt.Errorf("ACTUATOR_INTERVAL must be positive, got %s", c.ActuatorInterval))
	}
	if c.ClassifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CLASSIFY_TIMEOUT must be positive, got %s", c.ClassifyTimeout))
	}
	if c.ClassifyImageSize <= 0 {
		errs = append(errs, fmt.Errorf("CLASSIFY_IMAGE_SIZE must be positive, got %d", c.ClassifyImageSize))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("JPEG_QUALITY must be in [1, 100], got %d", c.JPEGQuality))
	}
	if c.SettleDelay < 0 || c.Cooldown < 0 {
		errs = append(errs, errors.New("SETTLE_DELAY and COOLDOWN must not be negative"))
	}
	if c.ClassifierAddr == "" {
		errs = append(errs, errors.New("CLASSIFIER_ADDR is required"))
	}
	if c.NotifyQueue <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_QUEUE must be positive, got %d", c.NotifyQueue))
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set"))
	}

	seen := make(map[string]entity.Command)
	for cmd, token := range c.CommandTokens {
		if token == "" || strings.ContainsAny(token, "\r\n") {
			errs = append(errs, fmt.Errorf("token for %s must be a single non-empty line", cmd))
			continue
		}
		if other, ok := seen[token]; ok {
			errs = append(errs, fmt.Errorf("commands %s and %s share token %q", other, cmd, token))
		}
		seen[token] = cmd
	}

	return errors.Join(errs...)
}

// envLoader читает переменные окружения и копит ошибки разбора.
type envLoader struct {
	errs []error
}

func (e *envLoader) err() error {
	return errors.Join(e.errs...)
}

func (e *envLoader) invalid(key, kind, value string) {
	e.errs = append(e.errs, fmt.Errorf("%s: invalid %s %q", key, kind, value))
}

func (e *envLoader) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e *envLoader) getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		e.invalid(key, "integer", value)
		return defaultValue
	}
	return intValue
}

func (e *envLoader) getEnvAsInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		e.invalid(key, "integer", value)
		return defaultValue
	}
	return intValue
}

func (e *envLoader) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		e.invalid(key, "duration", value)
		return defaultValue
	}
	return d
}
