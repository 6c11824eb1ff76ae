package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/opsbridge/internal/core/domain"
)

func TestCredentialKey(t *testing.T) {
	assert.Equal(t, "opsbridge:credentials:dev", credentialKey("opsbridge", "dev"))
	assert.Equal(t, "credentials:dev", credentialKey("", "dev"))
}

func TestCredentialHashRoundTrip(t *testing.T) {
	cred := &domain.Credential{
		Alias:        "prod",
		URL:          "https://prod.example.com",
		Auth:         domain.AuthOAuth,
		Username:     "svc",
		Password:     "pw",
		ClientID:     "cid",
		ClientSecret: "cs",
		Timeout:      45 * time.Second,
	}

	h := credentialToHash(cred)
	assert.NotContains(t, h, fieldToken)
	assert.Equal(t, "45000", h[fieldTimeoutMs])

	flat := make(map[string]string, len(h))
	for k, v := range h {
		flat[k] = v.(string)
	}
	got, err := credentialFromHash("prod", flat)
	require.NoError(t, err)
	assert.Equal(t, cred, got)
}

func TestCredentialToHash_InfersAuth(t *testing.T) {
	h := credentialToHash(&domain.Credential{Alias: "dev", URL: "u", Token: "tok"})
	assert.Equal(t, "token", h[fieldAuth])
}

func TestCredentialFromHash_BadTimeout(t *testing.T) {
	_, err := credentialFromHash("dev", map[string]string{fieldURL: "u", fieldTimeoutMs: "soon"})
	assert.Error(t, err)
}

func TestClient_Live(t *testing.T) {
	url := os.Getenv("OPSBRIDGE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping live redis test. Set OPSBRIDGE_TEST_REDIS_URL to run.")
	}

	ctx := context.Background()
	prefix := "opsbridge-test-" + time.Now().Format("150405.000")
	client, err := NewClient(Config{URL: url, KeyPrefix: prefix})
	require.NoError(t, err)
	defer client.Close()

	missing, err := client.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Nil(t, missing)

	cred := &domain.Credential{Alias: "dev", URL: "https://dev.example.com", Auth: domain.AuthBasic, Username: "a", Password: "b"}
	require.NoError(t, client.Put(ctx, cred))
	t.Cleanup(func() { _ = client.Delete(context.Background(), "dev") })

	got, err := client.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, cred, got)

	all, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "dev", all[0].Alias)
}
