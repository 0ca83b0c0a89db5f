package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
)

// WorkflowRepository handles workflow persistence in MySQL
type WorkflowRepository struct {
	ds *Datastore
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(ds *Datastore) *WorkflowRepository {
	return &WorkflowRepository{ds: ds}
}

// Create inserts a workflow
func (r *WorkflowRepository) Create(ctx context.Context, workflow *model.Workflow) error {
	return translateError(r.ds.DB(ctx).Create(FromWorkflowDomain(workflow)).Error)
}

// Get retrieves a workflow by ID
func (r *WorkflowRepository) Get(ctx context.Context, id string) (*model.Workflow, error) {
	var row Workflow
	if err := r.ds.DB(ctx).Where("workflow_id = ?", id).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return ToWorkflowDomain(&row), nil
}

// List lists active workflows, newest first
func (r *WorkflowRepository) List(ctx context.Context, category string) ([]*model.Workflow, error) {
	query := r.ds.DB(ctx).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var rows []*Workflow
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	out := make([]*model.Workflow, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToWorkflowDomain(row))
	}
	return out, nil
}

// Update overwrites every mutable column of a workflow
func (r *WorkflowRepository) Update(ctx context.Context, workflow *model.Workflow) error {
	row := FromWorkflowDomain(workflow)
	row.UpdatedAt = time.Now().UTC()
	return saveByKey(r.ds.DB(ctx).Model(&Workflow{}).Where("workflow_id = ?", workflow.ID), row)
}

// QuickActionRepository handles quick action persistence in MySQL
type QuickActionRepository struct {
	ds *Datastore
}

// NewQuickActionRepository creates a new quick action repository
func NewQuickActionRepository(ds *Datastore) *QuickActionRepository {
	return &QuickActionRepository{ds: ds}
}

// Create inserts a quick action
func (r *QuickActionRepository) Create(ctx context.Context, action *model.QuickAction) error {
	return translateError(r.ds.DB(ctx).Create(FromQuickActionDomain(action)).Error)
}

// Get retrieves a quick action by ID
func (r *QuickActionRepository) Get(ctx context.Context, id string) (*model.QuickAction, error) {
	var row QuickAction
	if err := r.ds.DB(ctx).Where("action_id = ?", id).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return ToQuickActionDomain(&row), nil
}

// List lists active quick actions, most used first
func (r *QuickActionRepository) List(ctx context.Context, category string) ([]*model.QuickAction, error) {
	query := r.ds.DB(ctx).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var rows []*QuickAction
	if err := query.Order("usage_count DESC, name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list quick actions: %w", err)
	}

	out := make([]*model.QuickAction, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToQuickActionDomain(row))
	}
	return out, nil
}

// Update overwrites every mutable column of a quick action
func (r *QuickActionRepository) Update(ctx context.Context, action *model.QuickAction) error {
	row := FromQuickActionDomain(action)
	row.UpdatedAt = time.Now().UTC()
	return saveByKey(r.ds.DB(ctx).Model(&QuickAction{}).Where("action_id = ?", action.ID), row)
}

// IncrementUsage bumps the usage counter atomically
func (r *QuickActionRepository) IncrementUsage(ctx context.Context, id string) error {
	result := r.ds.DB(ctx).Model(&QuickAction{}).
		Where("action_id = ?", id).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// saveByKey writes all columns except the surrogate key and creation time
func saveByKey(query *gorm.DB, row interface{}) error {
	result := query.Select("*").Omit("id", "created_at").Updates(row)
	if result.Error != nil {
		return translateError(result.Error)
	}
	return nil
}
