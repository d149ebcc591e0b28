package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadKafkaConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("KAFKA_ORDER_TOPIC", "orders.v2")

	cfg := LoadKafkaConfig()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, "orders.v2", cfg.OrderTopic)

	t.Setenv("KAFKA_BROKERS", "")
	assert.Empty(t, LoadKafkaConfig().Brokers)
}

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "gharkoswad")

	dsn := LoadDatabaseConfig().DSN()
	assert.Contains(t, dsn, "host=db ")
	assert.Contains(t, dsn, "dbname=gharkoswad ")
	assert.Contains(t, dsn, "TimeZone=Asia/Kathmandu")
}

func TestServerDefaults(t *testing.T) {
	cfg := LoadServerConfig()
	assert.NotEmpty(t, cfg.Port)
	assert.Equal(t, "NPR", LoadPaymentConfig().Currency)
}
