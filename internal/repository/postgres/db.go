package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/wakilipro/booking-api/internal/config"
)

// NewDB opens and pings the postgres pool.
//
// The bookings table is expected to carry the exclusion constraint that is
// the real double-booking guard (the service-level availability check is
// only an early rejection):
//
//	ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
//	  EXCLUDE USING gist (
//	    provider_id WITH =,
//	    tstzrange(scheduled_start, scheduled_end) WITH &&
//	  ) WHERE (status <> 'CANCELLED');
func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
