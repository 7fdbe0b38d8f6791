package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/tradehub-backend/internal/engine/trust"
)

// ErrMiss: снимка нет в кэше или он истёк.
var ErrMiss = errors.New("redis: снимок не найден")

// TrustSnapshot: сохранённая оценка компании.
type TrustSnapshot struct {
	CompanyID  uuid.UUID        `json:"company_id"`
	Assessment trust.Assessment `json:"assessment"`
	ComputedAt time.Time        `json:"computed_at"`
}

// TrustSnapshotCache хранит снимки как JSON строки с TTL.
//
// Схема ключей:
//
//	trust:snapshot:{companyID}
type TrustSnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTrustSnapshotCache создаёт кэш поверх клиента.
func NewTrustSnapshotCache(c *Client, ttl time.Duration) *TrustSnapshotCache {
	return &TrustSnapshotCache{rdb: c.rdb, ttl: ttl}
}

func trustSnapshotKey(companyID uuid.UUID) string {
	return "trust:snapshot:" + companyID.String()
}

// Get возвращает снимок или ErrMiss.
func (tc *TrustSnapshotCache) Get(ctx context.Context, companyID uuid.UUID) (TrustSnapshot, error) {
	data, err := tc.rdb.Get(ctx, trustSnapshotKey(companyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TrustSnapshot{}, ErrMiss
		}
		return TrustSnapshot{}, fmt.Errorf("redis: get trust snapshot %s: %w", companyID, err)
	}

	var snap TrustSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return TrustSnapshot{}, fmt.Errorf("redis: unmarshal trust snapshot %s: %w", companyID, err)
	}
	return snap, nil
}

// Set сохраняет снимок на TTL кэша.
func (tc *TrustSnapshotCache) Set(ctx context.Context, snap TrustSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal trust snapshot %s: %w", snap.CompanyID, err)
	}
	if err := tc.rdb.Set(ctx, trustSnapshotKey(snap.CompanyID), data, tc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set trust snapshot %s: %w", snap.CompanyID, err)
	}
	return nil
}

// Invalidate удаляет снимок, например после нового спора по сделке компании.
func (tc *TrustSnapshotCache) Invalidate(ctx context.Context, companyIDs ...uuid.UUID) error {
	if len(companyIDs) == 0 {
		return nil
	}
	keys := make([]string, len(companyIDs))
	for i, id := range companyIDs {
		keys[i] = trustSnapshotKey(id)
	}
	if err := tc.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate trust snapshots: %w", err)
	}
	return nil
}
