package handler

import (
	"fleetwatch/internal/model"
	"fleetwatch/internal/service"

	"github.com/gin-gonic/gin"
)

// WorkflowHandler workflows, quick actions and runs
type WorkflowHandler struct {
	workflowService *service.WorkflowService
	dispatchService *service.DispatchService
}

// NewWorkflowHandler creates workflow handler
func NewWorkflowHandler(workflowService *service.WorkflowService, dispatchService *service.DispatchService) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		dispatchService: dispatchService,
	}
}

// ExecuteRequest targets of a stored workflow or quick action
type ExecuteRequest struct {
	DeviceIDs     []string            `json:"deviceIds"`
	ExecutionMode model.ExecutionMode `json:"executionMode"`
}

// RunRequest inline workflow definition
type RunRequest struct {
	Name          string               `json:"name"`
	Steps         []model.WorkflowStep `json:"steps" binding:"required"`
	DeviceIDs     []string             `json:"deviceIds" binding:"required"`
	ExecutionMode model.ExecutionMode  `json:"executionMode"`
}

func bindExecuteRequest(c *gin.Context) (*ExecuteRequest, bool) {
	var req ExecuteRequest
	if c.Request.ContentLength == 0 {
		return &req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return nil, false
	}
	if !validExecutionMode(req.ExecutionMode) {
		respondBadRequest(c, "executionMode must be parallel or sequential")
		return nil, false
	}
	return &req, true
}

func validExecutionMode(mode model.ExecutionMode) bool {
	switch mode {
	case "", model.ExecutionModeParallel, model.ExecutionModeSequential:
		return true
	}
	return false
}

// List lists active workflows
// @Summary List workflows
// @Tags workflows
// @Param category query string false "Category"
// @Router /api/workflows [get]
func (h *WorkflowHandler) List(c *gin.Context) {
	workflows, err := h.workflowService.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, workflows, len(workflows))
}

// Templates built-in workflow templates
func (h *WorkflowHandler) Templates(c *gin.Context) {
	templates := h.workflowService.Templates()
	respondList(c, templates, len(templates))
}

func (h *WorkflowHandler) Get(c *gin.Context) {
	wf, err := h.workflowService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, wf)
}

// Create stores a workflow
// @Summary Create workflow
// @Tags workflows
// @Accept json
// @Param request body service.CreateWorkflowRequest true "Workflow"
// @Router /api/workflows [post]
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req service.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	wf, err := h.workflowService.Create(c.Request.Context(), &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, wf, "Workflow created")
}

func (h *WorkflowHandler) Update(c *gin.Context) {
	var upd model.WorkflowUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	wf, err := h.workflowService.Update(c.Request.Context(), c.Param("id"), &upd)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, wf)
}

func (h *WorkflowHandler) Delete(c *gin.Context) {
	if err := h.workflowService.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Workflow deleted")
}

// Execute runs a stored workflow; with no deviceIds its saved targets are used
// @Summary Execute workflow
// @Tags workflows
// @Accept json
// @Param request body ExecuteRequest false "Targets"
// @Router /api/workflows/{id}/execute [post]
func (h *WorkflowHandler) Execute(c *gin.Context) {
	req, ok := bindExecuteRequest(c)
	if !ok {
		return
	}
	run, err := h.dispatchService.ExecuteWorkflow(c.Request.Context(), c.Param("id"), req.DeviceIDs, req.ExecutionMode, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, run, "Workflow execution started")
}

// Run dispatches an inline definition without storing it
func (h *WorkflowHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if !validExecutionMode(req.ExecutionMode) {
		respondBadRequest(c, "executionMode must be parallel or sequential")
		return
	}
	name := req.Name
	if name == "" {
		name = "Ad-hoc workflow"
	}
	def := model.RunDefinition{Name: name, Kind: model.RunKindWorkflow, Steps: req.Steps}

	run, err := h.dispatchService.DispatchWorkflowRun(c.Request.Context(), def, req.DeviceIDs, req.ExecutionMode, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, run, "Workflow execution started")
}

// Executions paginated run history of a workflow
func (h *WorkflowHandler) Executions(c *gin.Context) {
	page, limit := pagination(c)
	runs, total, err := h.dispatchService.ListRuns(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, runs, len(runs), total, page, limit)
}

// GetRun returns one run with its per-device results
func (h *WorkflowHandler) GetRun(c *gin.Context) {
	run, err := h.dispatchService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, run)
}

// ListQuickActions active quick actions, most used first
func (h *WorkflowHandler) ListQuickActions(c *gin.Context) {
	actions, err := h.workflowService.ListQuickActions(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, actions, len(actions))
}

func (h *WorkflowHandler) QuickActionPresets(c *gin.Context) {
	presets := h.workflowService.QuickActionPresets()
	respondList(c, presets, len(presets))
}

func (h *WorkflowHandler) CreateQuickAction(c *gin.Context) {
	var req service.CreateQuickActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	action, err := h.workflowService.CreateQuickAction(c.Request.Context(), &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, action, "Quick action created")
}

func (h *WorkflowHandler) UpdateQuickAction(c *gin.Context) {
	var upd model.QuickActionUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	action, err := h.workflowService.UpdateQuickAction(c.Request.Context(), c.Param("id"), &upd)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, action)
}

func (h *WorkflowHandler) DeleteQuickAction(c *gin.Context) {
	if err := h.workflowService.DeactivateQuickAction(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Quick action deleted")
}

// ExecuteQuickAction pushes a quick action to the requested devices
func (h *WorkflowHandler) ExecuteQuickAction(c *gin.Context) {
	req, ok := bindExecuteRequest(c)
	if !ok {
		return
	}
	run, err := h.dispatchService.ExecuteQuickAction(c.Request.Context(), c.Param("id"), req.DeviceIDs, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, run, "Quick action sent")
}
