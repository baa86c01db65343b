package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wakilipro/booking-api/internal/repository"
)

// ReferenceStore deduplicates payment-gateway callbacks using SETNX with a
// TTL. Keys live in redis, not process memory, so replay protection holds
// across restarts and instances.
type ReferenceStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewReferenceStore(client *redis.Client) repository.PaymentReferenceStore {
	return &ReferenceStore{
		client:    client,
		keyPrefix: "payment_ref:",
	}
}

func (s *ReferenceStore) SaveIfAbsent(ctx context.Context, reference string, bookingID uuid.UUID, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+reference, bookingID.String(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to save payment reference: %w", err)
	}
	return ok, nil
}
