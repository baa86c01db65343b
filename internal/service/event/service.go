package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/repository"
	"github.com/wakilipro/booking-api/pkg/logger"
)

// Service enqueues lifecycle events through the transactional outbox. The
// outbox worker publishes them to the broker; counterparty notification is
// fire-and-forget and never blocks a state transition.
type Service struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewService(outboxRepo repository.OutboxRepository, logger *logger.Logger) *Service {
	return &Service{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Emit records the event for asynchronous delivery. Failures are logged and
// swallowed: a lost notification must never roll back the transition that
// triggered it.
func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(fmt.Errorf("failed to marshal payload: %w", err),
			"failed to emit event", "event_type", eventType)
		return
	}

	evt := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}

	if err := s.outboxRepo.Create(ctx, evt); err != nil {
		s.logger.Error(err, "failed to emit event", "event_type", eventType)
	}
}
