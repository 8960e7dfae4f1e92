package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/certify-api/internal/config"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/messaging"
)

func TestNewBackend(t *testing.T) {
	cfg := config.ProvidersConfig{
		Postmark: config.PostmarkConfig{ServerToken: "server-token", From: "certs@example.com"},
		SMTP:     config.SMTPConfig{Host: "localhost", Port: 1025, From: "certs@example.com"},
	}

	for _, id := range []string{"postmark", "smtp", "webhook"} {
		backend, err := newBackend(id, cfg)
		require.NoError(t, err, id)
		assert.Equal(t, id, backend.ID())
	}

	_, err := newBackend("carrier-pigeon", cfg)
	assert.Error(t, err)
}

func TestNewBackendRequiresCredentials(t *testing.T) {
	_, err := newBackend("postmark", config.ProvidersConfig{})
	assert.Error(t, err)

	_, err = newBackend("smtp", config.ProvidersConfig{})
	assert.Error(t, err)
}

func TestNewBrokerFallsBackToMemory(t *testing.T) {
	broker, err := newBroker(config.RedisConfig{}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &messaging.MemoryBroker{}, broker)
}
