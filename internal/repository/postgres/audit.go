package postgres

import (
	"context"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
)

// AuditRepository реализует domain.AuditRepository
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository создает новый AuditRepository
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record пишет запись аудита привилегированной операции
func (r *AuditRepository) Record(ctx context.Context, rec *domain.AuditRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_log (actor_id, target_id, op_type, old_value, new_value, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ActorID, rec.TargetID, rec.OpType, rec.OldValue, rec.NewValue, rec.Reason,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to record audit entry for target %d: %w", rec.TargetID, err)
	}

	return nil
}

// ByTarget возвращает записи аудита по целевому аккаунту, новые первыми
func (r *AuditRepository) ByTarget(ctx context.Context, targetID int64, limit, offset int) ([]*domain.AuditRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, actor_id, target_id, op_type, old_value, new_value, reason, created_at
		 FROM audit_log
		 WHERE target_id = $1
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`,
		targetID, limit, offset,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get audit log for target %d: %w", targetID, err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		rec := &domain.AuditRecord{}
		err := rows.Scan(&rec.ID, &rec.ActorID, &rec.TargetID, &rec.OpType,
			&rec.OldValue, &rec.NewValue, &rec.Reason, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating audit log: %w", err)
	}

	return records, nil
}
