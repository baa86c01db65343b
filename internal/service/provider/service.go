package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository"
)

// Service is the read-mostly directory facade the booking core consults
// for rates, verification, and discount eligibility. Provider rows change
// rarely, so lookups go through a short-lived in-process cache.
type Service struct {
	repo  repository.ProviderRepository
	cache *cache.Cache
}

func NewService(repo repository.ProviderRepository, cacheTTL time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	key := "provider:" + id.String()
	if cached, found := s.cache.Get(key); found {
		return cached.(*model.Provider), nil
	}

	provider, err := s.repo.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, provider)
	return provider, nil
}

// GetClient is uncached: discount eligibility must be read fresh.
func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	return s.repo.GetClient(ctx, id)
}

// ConsumeFirstConsultation marks the client's one-time discount as used.
// Returns false when it was already consumed.
func (s *Service) ConsumeFirstConsultation(ctx context.Context, clientID uuid.UUID) (bool, error) {
	consumed, err := s.repo.ConsumeFirstConsultation(ctx, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to consume first consultation: %w", err)
	}
	return consumed, nil
}

// RestoreFirstConsultation undoes a consumed discount when the booking it
// was consumed for failed to persist.
func (s *Service) RestoreFirstConsultation(ctx context.Context, clientID uuid.UUID) error {
	return s.repo.RestoreFirstConsultation(ctx, clientID)
}
