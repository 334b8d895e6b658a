// Package cache keeps the Pix charge (QR image + copy-paste code) around
// so the status polling screen can re-render it without asking the
// gateway again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brenoghost0/dermosul-checkout/internal/domain"
)

var ErrCacheMiss = errors.New("pix charge not in cache")

func NewPixCache(client *redis.Client) *PixCache {
	return &PixCache{
		client:  client,
		baseTTL: 30 * time.Minute,
	}
}

type PixCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (p PixCache) Get(ctx context.Context, externalReference string) (*domain.PixCharge, error) {
	key := cacheKey(externalReference)

	data, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var charge domain.PixCharge
	if e2 := json.Unmarshal(data, &charge); e2 != nil {
		return nil, fmt.Errorf("unmarshal pix charge failed: %w", e2)
	}

	return &charge, nil
}

func (p PixCache) Set(ctx context.Context, externalReference string, charge *domain.PixCharge) error {
	key := cacheKey(externalReference)
	payload, err := json.Marshal(charge)
	if err != nil {
		return fmt.Errorf("marshal pix charge failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)+1) * time.Minute
	ttl := p.baseTTL + jitter
	if e2 := p.client.Set(ctx, key, string(payload), ttl).Err(); e2 != nil {
		return fmt.Errorf("redis set failed: %w", e2)
	}
	return nil
}

func (p PixCache) Delete(ctx context.Context, externalReference string) error {
	key := cacheKey(externalReference)
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(externalReference string) string {
	return fmt.Sprintf("pix:%s", externalReference)
}
