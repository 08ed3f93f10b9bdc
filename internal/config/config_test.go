package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViper(set map[string]any) *viper.Viper {
	v := viper.New()
	defaults(v)
	for k, val := range set {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	c, err := fromViper(testViper(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "dynamo", c.StoreDriver)
	assert.Equal(t, 30*24*time.Hour, c.TokenTTL)
	assert.Equal(t, 9, c.ReminderHour)
	assert.Equal(t, "America/New_York", c.Location.String())
	assert.Empty(t, c.KafkaBrokers)
	assert.Equal(t, c.EmailFrom, c.SESFromEmail)
}

func TestOverrides(t *testing.T) {
	c, err := fromViper(testViper(map[string]any{
		"STORE_DRIVER":   "MEMORY",
		"KAFKA_BROKERS":  "a:9092, b:9092,",
		"TOKEN_TTL":      "48h",
		"SES_FROM_EMAIL": "ses@x.org",
	}))
	require.NoError(t, err)

	assert.Equal(t, "memory", c.StoreDriver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.KafkaBrokers)
	assert.Equal(t, 48*time.Hour, c.TokenTTL)
	assert.Equal(t, "ses@x.org", c.SESFromEmail)
}

func TestInvalid(t *testing.T) {
	_, err := fromViper(testViper(map[string]any{"TIMEZONE": "Mars/Olympus"}))
	assert.Error(t, err)

	_, err = fromViper(testViper(map[string]any{"REMINDER_HOUR": 24}))
	assert.Error(t, err)

	_, err = fromViper(testViper(map[string]any{"TOKEN_TTL": "0s"}))
	assert.Error(t, err)
}
