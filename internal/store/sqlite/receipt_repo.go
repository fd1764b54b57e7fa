package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatcore/internal/domain"
)

type ReceiptRepo struct {
	db *sql.DB
}

func NewReceiptRepo(db *sql.DB) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

var _ domain.ReceiptRepository = (*ReceiptRepo)(nil)

// Create inserts a receipt. A second ack of the same message by the same
// user hits the (message_id, user_id) unique constraint and comes back as
// domain.ErrDuplicate; callers treat that as already-acknowledged.
func (r *ReceiptRepo) Create(ctx context.Context, rec *domain.ReadReceipt) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.ReadAt = time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO read_receipts (id, message_id, user_id, read_at)
		VALUES (?, ?, ?, ?)
	`, rec.ID, rec.MessageID, rec.UserID, rec.ReadAt); err != nil {
		return fmt.Errorf("insert receipt: %w", mapErr(err))
	}
	return nil
}

func (r *ReceiptRepo) ListForMessage(ctx context.Context, messageID string) ([]*domain.ReadReceipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, user_id, read_at
		FROM read_receipts
		WHERE message_id = ?
		ORDER BY read_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var res []*domain.ReadReceipt
	for rows.Next() {
		rec := &domain.ReadReceipt{}
		if err := rows.Scan(
			&rec.ID,
			&rec.MessageID,
			&rec.UserID,
			&rec.ReadAt,
		); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
