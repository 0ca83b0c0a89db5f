package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"

	"github.com/google/uuid"
)

const (
	defaultWorkflowCategory = "custom"
	defaultWorkingDirectory = model.DefaultStepDirectory
)

// CreateWorkflowRequest new workflow
type CreateWorkflowRequest struct {
	Name          string               `json:"name" binding:"required"`
	Description   string               `json:"description"`
	Category      string               `json:"category"`
	Steps         []model.WorkflowStep `json:"steps" binding:"required"`
	TargetDevices []string             `json:"targetDevices"`
}

// CreateQuickActionRequest new quick action
type CreateQuickActionRequest struct {
	Name                 string `json:"name" binding:"required"`
	Description          string `json:"description"`
	Category             string `json:"category"`
	Command              string `json:"command" binding:"required"`
	WorkingDirectory     string `json:"workingDirectory"`
	RequiresConfirmation bool   `json:"requiresConfirmation"`
	Icon                 string `json:"icon"`
}

// WorkflowService stored workflows, quick actions and their catalogs
type WorkflowService struct {
	workflows interfaces.WorkflowRepository
	actions   interfaces.QuickActionRepository
	now       func() time.Time
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(workflows interfaces.WorkflowRepository, actions interfaces.QuickActionRepository) *WorkflowService {
	return &WorkflowService{
		workflows: workflows,
		actions:   actions,
		now:       time.Now,
	}
}

func normalizeSteps(steps []model.WorkflowStep) ([]model.WorkflowStep, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyWorkflow
	}
	out := make([]model.WorkflowStep, len(steps))
	for i, step := range steps {
		step.Command = strings.TrimSpace(step.Command)
		if step.Command == "" {
			return nil, fmt.Errorf("%w: step %d has no command", ErrInvalidArgument, i)
		}
		if step.Name == "" {
			step.Name = fmt.Sprintf("Step %d", i+1)
		}
		out[i] = step.WithDefaults()
	}
	return out, nil
}

// Create stores a new workflow
func (s *WorkflowService) Create(ctx context.Context, req *CreateWorkflowRequest, actor string) (*model.Workflow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	steps, err := normalizeSteps(req.Steps)
	if err != nil {
		return nil, err
	}
	category := req.Category
	if category == "" {
		category = defaultWorkflowCategory
	}
	targets := req.TargetDevices
	if targets == nil {
		targets = []string{}
	}

	now := s.now()
	wf := &model.Workflow{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   req.Description,
		Category:      category,
		Steps:         steps,
		TargetDevices: targets,
		CreatedBy:     actor,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return wf, nil
}

// Get returns an active workflow
func (s *WorkflowService) Get(ctx context.Context, id string) (*model.Workflow, error) {
	wf, err := s.workflows.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if !wf.IsActive {
		return nil, ErrWorkflowNotFound
	}
	return wf, nil
}

// List returns active workflows, newest first
func (s *WorkflowService) List(ctx context.Context, category string) ([]*model.Workflow, error) {
	workflows, err := s.workflows.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return workflows, nil
}

// Update edits name, description, category, steps or targets
func (s *WorkflowService) Update(ctx context.Context, id string, upd *model.WorkflowUpdate) (*model.Workflow, error) {
	wf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
		}
		wf.Name = name
	}
	if upd.Description != nil {
		wf.Description = *upd.Description
	}
	if upd.Category != nil && *upd.Category != "" {
		wf.Category = *upd.Category
	}
	if upd.Steps != nil {
		steps, err := normalizeSteps(upd.Steps)
		if err != nil {
			return nil, err
		}
		wf.Steps = steps
	}
	if upd.TargetDevices != nil {
		wf.TargetDevices = upd.TargetDevices
	}
	wf.UpdatedAt = s.now()

	if err := s.workflows.Update(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}
	return wf, nil
}

// Deactivate hides a workflow; its run history is kept
func (s *WorkflowService) Deactivate(ctx context.Context, id string) error {
	wf, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	wf.IsActive = false
	wf.UpdatedAt = s.now()
	if err := s.workflows.Update(ctx, wf); err != nil {
		return fmt.Errorf("failed to deactivate workflow: %w", err)
	}
	return nil
}

// Templates built-in workflow starting points
func (s *WorkflowService) Templates() []model.WorkflowTemplate {
	out := make([]model.WorkflowTemplate, len(workflowTemplates))
	for i, t := range workflowTemplates {
		t.Steps, _ = normalizeSteps(t.Steps)
		out[i] = t
	}
	return out
}

// CreateQuickAction stores a new quick action
func (s *WorkflowService) CreateQuickAction(ctx context.Context, req *CreateQuickActionRequest, actor string) (*model.QuickAction, error) {
	name := strings.TrimSpace(req.Name)
	command := strings.TrimSpace(req.Command)
	if name == "" || command == "" {
		return nil, fmt.Errorf("%w: name and command are required", ErrInvalidArgument)
	}
	category := req.Category
	if category == "" {
		category = defaultWorkflowCategory
	}
	dir := req.WorkingDirectory
	if dir == "" {
		dir = defaultWorkingDirectory
	}

	now := s.now()
	action := &model.QuickAction{
		ID:                   uuid.NewString(),
		Name:                 name,
		Description:          req.Description,
		Category:             category,
		Command:              command,
		WorkingDirectory:     dir,
		RequiresConfirmation: req.RequiresConfirmation,
		Icon:                 req.Icon,
		CreatedBy:            actor,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to create quick action: %w", err)
	}
	return action, nil
}

// ListQuickActions returns active quick actions, most used first
func (s *WorkflowService) ListQuickActions(ctx context.Context, category string) ([]*model.QuickAction, error) {
	actions, err := s.actions.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list quick actions: %w", err)
	}
	return actions, nil
}

func (s *WorkflowService) getActiveQuickAction(ctx context.Context, id string) (*model.QuickAction, error) {
	action, err := s.actions.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrQuickActionNotFound
		}
		return nil, fmt.Errorf("failed to get quick action: %w", err)
	}
	if !action.IsActive {
		return nil, ErrQuickActionNotFound
	}
	return action, nil
}

// UpdateQuickAction edits an active quick action; usage count is kept
func (s *WorkflowService) UpdateQuickAction(ctx context.Context, id string, upd *model.QuickActionUpdate) (*model.QuickAction, error) {
	action, err := s.getActiveQuickAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
		}
		action.Name = name
	}
	if upd.Command != nil {
		command := strings.TrimSpace(*upd.Command)
		if command == "" {
			return nil, fmt.Errorf("%w: command cannot be empty", ErrInvalidArgument)
		}
		action.Command = command
	}
	if upd.Description != nil {
		action.Description = *upd.Description
	}
	if upd.Category != nil && *upd.Category != "" {
		action.Category = *upd.Category
	}
	if upd.WorkingDirectory != nil {
		action.WorkingDirectory = *upd.WorkingDirectory
		if action.WorkingDirectory == "" {
			action.WorkingDirectory = defaultWorkingDirectory
		}
	}
	if upd.RequiresConfirmation != nil {
		action.RequiresConfirmation = *upd.RequiresConfirmation
	}
	if upd.Icon != nil {
		action.Icon = *upd.Icon
	}
	action.UpdatedAt = s.now()

	if err := s.actions.Update(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to update quick action: %w", err)
	}
	return action, nil
}

// DeactivateQuickAction hides a quick action
func (s *WorkflowService) DeactivateQuickAction(ctx context.Context, id string) error {
	action, err := s.getActiveQuickAction(ctx, id)
	if err != nil {
		return err
	}
	action.IsActive = false
	action.UpdatedAt = s.now()
	if err := s.actions.Update(ctx, action); err != nil {
		return fmt.Errorf("failed to deactivate quick action: %w", err)
	}
	return nil
}

// QuickActionPresets built-in quick actions
func (s *WorkflowService) QuickActionPresets() []model.QuickAction {
	out := make([]model.QuickAction, len(quickActionPresets))
	for i, p := range quickActionPresets {
		p.WorkingDirectory = defaultWorkingDirectory
		p.IsActive = true
		out[i] = p
	}
	return out
}
