// Package config reads process settings from the environment (and a .env file
// when present).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string

	StoreDriver       string // dynamo | memory
	AWSRegion         string
	DynamoEndpoint    string
	DynamoTablePrefix string

	EmailProvider  string // sendgrid | ses | log
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	SESFromEmail   string
	AppBaseURL     string

	KafkaBrokers   []string // empty: the API runs task triggers inline
	KafkaTopicTask string
	KafkaGroupID   string

	JWTSecret string
	RedisAddr string

	ReminderHour int
	Location     *time.Location
	TokenTTL     time.Duration

	LogLevel  string
	LogFormat string
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", "dynamo")
	v.SetDefault("AWS_REGION", "us-east-2")
	v.SetDefault("DYNAMO_TABLE_PREFIX", "")
	v.SetDefault("EMAIL_PROVIDER", "log")
	v.SetDefault("EMAIL_FROM", "noreply@rockvillecg.org")
	v.SetDefault("EMAIL_FROM_NAME", "Rockville CG")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC_TASKS", "rockville-task-changes")
	v.SetDefault("KAFKA_GROUP_ID", "rockville-task-worker")
	v.SetDefault("REMINDER_HOUR", 9)
	v.SetDefault("TIMEZONE", "America/New_York")
	v.SetDefault("TOKEN_TTL", "720h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE: %w", err)
	}
	hour := v.GetInt("REMINDER_HOUR")
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("config: REMINDER_HOUR must be 0-23, got %d", hour)
	}
	ttl := v.GetDuration("TOKEN_TTL")
	if ttl <= 0 {
		return nil, fmt.Errorf("config: TOKEN_TTL must be positive")
	}

	c := &Config{
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		AWSRegion:         v.GetString("AWS_REGION"),
		DynamoEndpoint:    v.GetString("DYNAMO_ENDPOINT"),
		DynamoTablePrefix: v.GetString("DYNAMO_TABLE_PREFIX"),
		EmailProvider:     strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		SendGridAPIKey:    v.GetString("SENDGRID_API_KEY"),
		EmailFrom:         v.GetString("EMAIL_FROM"),
		EmailFromName:     v.GetString("EMAIL_FROM_NAME"),
		SESFromEmail:      v.GetString("SES_FROM_EMAIL"),
		AppBaseURL:        v.GetString("APP_BASE_URL"),
		KafkaBrokers:      SplitCSV(v.GetString("KAFKA_BROKERS")),
		KafkaTopicTask:    v.GetString("KAFKA_TOPIC_TASKS"),
		KafkaGroupID:      v.GetString("KAFKA_GROUP_ID"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		ReminderHour:      hour,
		Location:          loc,
		TokenTTL:          ttl,
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
	}
	if c.SESFromEmail == "" {
		c.SESFromEmail = c.EmailFrom
	}
	return c, nil
}

func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
