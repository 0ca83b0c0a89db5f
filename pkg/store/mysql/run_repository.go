package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"fleetwatch/internal/model"
)

// RunRepository handles workflow execution persistence in MySQL
type RunRepository struct {
	ds *Datastore
}

// NewRunRepository creates a new run repository
func NewRunRepository(ds *Datastore) *RunRepository {
	return &RunRepository{ds: ds}
}

// Create inserts a run
func (r *RunRepository) Create(ctx context.Context, run *model.Run) error {
	return translateError(r.ds.DB(ctx).Create(FromRunDomain(run)).Error)
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*model.Run, error) {
	var row Run
	if err := r.ds.DB(ctx).Where("run_id = ?", id).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return ToRunDomain(&row), nil
}

// Mutate reads the run with SELECT ... FOR UPDATE, applies fn and writes it back in one transaction
func (r *RunRepository) Mutate(ctx context.Context, id string, fn func(run *model.Run) error) (*model.Run, error) {
	var out *model.Run
	err := r.ds.ExecTx(ctx, func(ctx context.Context) error {
		var row Run
		err := r.ds.DB(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("run_id = ?", id).
			First(&row).Error
		if err != nil {
			return translateError(err)
		}

		run := ToRunDomain(&row)
		if err := fn(run); err != nil {
			return err
		}

		updated := FromRunDomain(run)
		err = r.ds.DB(ctx).Model(&Run{}).
			Where("id = ?", row.ID).
			Select("*").
			Omit("id", "run_id").
			Updates(updated).Error
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByWorkflow returns one page of runs of a workflow, newest first
func (r *RunRepository) ListByWorkflow(ctx context.Context, workflowID string, page, limit int) ([]*model.Run, int64, error) {
	query := r.ds.DB(ctx).Model(&Run{}).Where("workflow_id = ?", workflowID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	page, limit = normalizePage(page, limit)
	var rows []*Run
	if err := query.Order("started_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]*model.Run, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToRunDomain(row))
	}
	return out, total, nil
}

// DeleteBefore removes runs started before the cutoff
func (r *RunRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("started_at < ?", before).Delete(&Run{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
