// Package cache keeps answers for repeated questions so an unchanged corpus
// does not pay the generation cost twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"docuchat/internal/redis"
)

// KV is the slice of redis the cache needs. Satisfied by *redis.Client.
type KV interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// AnswerCache caches answers per user. Entries embed a per-user version so
// invalidation after an upload is a single INCR, no key scan needed. A nil
// KV disables caching entirely.
type AnswerCache struct {
	kv  KV
	ttl time.Duration
}

// NewAnswerCache creates a cache with the given TTL. ttl <= 0 defaults to
// 30 minutes.
func NewAnswerCache(kv KV, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AnswerCache{kv: kv, ttl: ttl}
}

// Lookup returns the cached answer for a question, or ok=false on a miss.
// Cache failures degrade to a miss.
func (c *AnswerCache) Lookup(ctx context.Context, username, question string) (string, bool) {
	if c == nil || c.kv == nil {
		return "", false
	}
	key, err := c.answerKey(ctx, username, question)
	if err != nil {
		return "", false
	}
	answer, err := c.kv.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return answer, true
}

// Store records an answer for a question under the user's current corpus
// version.
func (c *AnswerCache) Store(ctx context.Context, username, question, answer string) error {
	if c == nil || c.kv == nil {
		return nil
	}
	key, err := c.answerKey(ctx, username, question)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, key, answer, c.ttl)
}

// Invalidate drops every cached answer for the user by bumping the corpus
// version. Old entries fall out via TTL.
func (c *AnswerCache) Invalidate(ctx context.Context, username string) error {
	if c == nil || c.kv == nil {
		return nil
	}
	_, err := c.kv.Incr(ctx, versionKey(username))
	return err
}

func (c *AnswerCache) answerKey(ctx context.Context, username, question string) (string, error) {
	version, err := c.kv.Get(ctx, versionKey(username))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			version = "0"
		} else {
			return "", err
		}
	}
	sum := sha256.Sum256([]byte(question))
	return fmt.Sprintf("answers:%s:%s:%s", username, version, hex.EncodeToString(sum[:])), nil
}

func versionKey(username string) string {
	return "answers:version:" + username
}
