package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// nextBillSequence increments the (kind, period) counter inside tx. The
// upsert holds the counter row lock until tx ends, so concurrent creators
// are serialized and a rolled back creation hands its number to the next one.
func nextBillSequence(ctx context.Context, tx *sqlx.Tx, kind models.BillKind, now time.Time) (int64, error) {
	const query = `INSERT INTO bill_sequences (kind, year_month, last_value, updated_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (kind, year_month) DO UPDATE
	SET last_value = bill_sequences.last_value + 1, updated_at = EXCLUDED.updated_at
RETURNING last_value`
	var seq int64
	if err := tx.GetContext(ctx, &seq, query, kind, models.BillingPeriod(now), now); err != nil {
		return 0, fmt.Errorf("next bill sequence: %w", err)
	}
	return seq, nil
}
