package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise-api/backend/internal/config"
	"enterprise-api/backend/internal/logging"
)

func TestTokenProvider_HMAC(t *testing.T) {
	cfg := &config.Config{
		JWTSecret:            "access-secret",
		JWTRefreshSecret:     "refresh-secret",
		JWTExpiration:        "15m",
		JWTRefreshExpiration: "7d",
		JWTIssuer:            "enterprise-api",
		JWTAudience:          "clients",
	}
	p, err := tokenProvider(cfg)
	require.NoError(t, err)

	token, _, err := p.IssueAccess("u1", "a@example.com", []string{"user"})
	require.NoError(t, err)
	claims, err := p.ValidateAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	store, err := fileStorage(context.Background(), &config.Config{StorageType: "local", UploadPath: dir})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Type())

	_, err = fileStorage(context.Background(), &config.Config{StorageType: "ftp"})
	assert.Error(t, err)
}

func TestAuditEmitter_WithoutKafka(t *testing.T) {
	cfg := &config.Config{}
	p, err := setupTelemetry(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	emitter, closeFn := auditEmitter(cfg, p, logging.Discard())
	defer closeFn()
	assert.NotNil(t, emitter)
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, "", bodyLimit(0))
	assert.Equal(t, "2097152B", bodyLimit(1<<20))
}
