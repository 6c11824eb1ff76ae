package redis

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/opsbridge/internal/core/domain"
)

// Each credential is one hash: <prefix>:credentials:<alias>.
const (
	fieldURL          = "url"
	fieldAuth         = "auth"
	fieldUsername     = "username"
	fieldPassword     = "password"
	fieldClientID     = "client_id"
	fieldClientSecret = "client_secret"
	fieldToken        = "token"
	fieldTimeoutMs    = "timeout_ms"
)

// Get returns the credential stored for alias, or nil when the hash does
// not exist.
func (c *Client) Get(ctx context.Context, alias string) (*domain.Credential, error) {
	fields, err := c.rdb.HGetAll(ctx, credentialKey(c.prefix, alias)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return credentialFromHash(alias, fields)
}

// Put stores cred, replacing any previous value for its alias.
func (c *Client) Put(ctx context.Context, cred *domain.Credential) error {
	key := credentialKey(c.prefix, cred.Alias)

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, credentialToHash(cred))
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}

// Delete removes the credential for alias.
func (c *Client) Delete(ctx context.Context, alias string) error {
	return c.rdb.Del(ctx, credentialKey(c.prefix, alias)).Err()
}

// List returns every stored credential ordered by alias.
func (c *Client) List(ctx context.Context) ([]*domain.Credential, error) {
	pattern := credentialKey(c.prefix, "*")
	keyPrefix := strings.TrimSuffix(pattern, "*")

	var aliases []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		aliases = append(aliases, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	slices.Sort(aliases)

	out := make([]*domain.Credential, 0, len(aliases))
	for _, alias := range aliases {
		cred, err := c.Get(ctx, alias)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			out = append(out, cred)
		}
	}
	return out, nil
}

func credentialToHash(cred *domain.Credential) map[string]any {
	h := map[string]any{
		fieldURL:  cred.URL,
		fieldAuth: string(cred.Method()),
	}
	set := func(field, value string) {
		if value != "" {
			h[field] = value
		}
	}
	set(fieldUsername, cred.Username)
	set(fieldPassword, cred.Password)
	set(fieldClientID, cred.ClientID)
	set(fieldClientSecret, cred.ClientSecret)
	set(fieldToken, cred.Token)
	if cred.Timeout > 0 {
		h[fieldTimeoutMs] = strconv.FormatInt(cred.Timeout.Milliseconds(), 10)
	}
	return h
}

func credentialFromHash(alias string, h map[string]string) (*domain.Credential, error) {
	cred := &domain.Credential{
		Alias:        alias,
		URL:          h[fieldURL],
		Auth:         domain.AuthMethod(h[fieldAuth]),
		Username:     h[fieldUsername],
		Password:     h[fieldPassword],
		ClientID:     h[fieldClientID],
		ClientSecret: h[fieldClientSecret],
		Token:        h[fieldToken],
	}
	if v := h[fieldTimeoutMs]; v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s for %q: %w", fieldTimeoutMs, alias, err)
		}
		cred.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cred, nil
}
