package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/model"
)

func (r *providerRepository) GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	query := `
		SELECT id, name, email, is_verified, hourly_rate, timezone,
			   offers_first_session_discount, specialization,
			   created_at, updated_at
		FROM providers
		WHERE id = $1
	`
	var provider model.Provider
	if err := r.db.GetContext(ctx, &provider, query, id); err != nil {
		return nil, mapNotFound(err, "provider")
	}
	return &provider, nil
}

func (r *providerRepository) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	query := `
		SELECT id, name, email, had_first_consultation, created_at, updated_at
		FROM clients
		WHERE id = $1
	`
	var client model.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, mapNotFound(err, "client")
	}
	return &client, nil
}

func (r *providerRepository) ConsumeFirstConsultation(ctx context.Context, clientID uuid.UUID) (bool, error) {
	query := `
		UPDATE clients
		SET had_first_consultation = TRUE, updated_at = NOW()
		WHERE id = $1 AND had_first_consultation = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to consume first consultation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *providerRepository) RestoreFirstConsultation(ctx context.Context, clientID uuid.UUID) error {
	query := `
		UPDATE clients
		SET had_first_consultation = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, clientID); err != nil {
		return fmt.Errorf("failed to restore first consultation: %w", err)
	}
	return nil
}
