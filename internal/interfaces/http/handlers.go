package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkoffice/oa-approval/internal/application/service"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService   service.ApprovalService
	permissionService service.PermissionService
	todoService       service.TodoService
	exportService     service.ExportService
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	permissionService service.PermissionService,
	todoService service.TodoService,
	exportService service.ExportService,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService:   approvalService,
		permissionService: permissionService,
		todoService:       todoService,
		exportService:     exportService,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ApprovalActionRequest is the body of POST /api/reimbursements/:id/approval
type ApprovalActionRequest struct {
	Action  string `json:"action" binding:"required"`
	Opinion string `json:"opinion"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SubmitReimbursement handles POST /api/reimbursements/:id/submit
func (h *Handlers) SubmitReimbursement(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	claims := currentClaims(c)

	request, err := h.approvalService.Submit(c.Request.Context(), id, claims.UserID)
	if err != nil {
		h.writeError(c, "submit reimbursement", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    request,
	})
}

// ApproveReimbursement handles POST /api/reimbursements/:id/approval
func (h *Handlers) ApproveReimbursement(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	claims := currentClaims(c)

	var req ApprovalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	request, err := h.approvalService.Act(c.Request.Context(), id, claims.UserID, req.Action, req.Opinion)
	if err != nil {
		h.writeError(c, "apply approval action", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    request,
	})
}

// CancelReimbursement handles POST /api/reimbursements/:id/cancel
func (h *Handlers) CancelReimbursement(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	claims := currentClaims(c)

	if err := h.approvalService.Cancel(c.Request.Context(), id, claims.UserID); err != nil {
		h.writeError(c, "cancel reimbursement", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// GetProgress handles GET /api/reimbursements/:id/progress
func (h *Handlers) GetProgress(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	progress, err := h.approvalService.Progress(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "load approval progress", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    progress,
	})
}

// ExportRecords handles GET /api/reimbursements/:id/export
func (h *Handlers) ExportRecords(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	data, err := h.exportService.ExportRecords(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "export approval records", err)
		return
	}

	filename := fmt.Sprintf("approval-records-%d.xlsx", id)
	c.DataFromReader(http.StatusOK, int64(len(data)),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		bytes.NewReader(data),
		map[string]string{"Content-Disposition": `attachment; filename="` + filename + `"`})
}

// ListTodos handles GET /api/todos
func (h *Handlers) ListTodos(c *gin.Context) {
	claims := currentClaims(c)

	items, err := h.todoService.ListPending(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeError(c, "list pending approvals", err)
		return
	}
	if items == nil {
		items = []entity.PendingItem{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    items,
	})
}

// GetMyPermissions handles GET /api/permissions/me
func (h *Handlers) GetMyPermissions(c *gin.Context) {
	claims := currentClaims(c)

	perms, err := h.permissionService.Resolve(c.Request.Context(), claims.UserID, claims.DepartmentID)
	if err != nil {
		h.writeError(c, "resolve permissions", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    perms,
	})
}

// pathID parses the :id path parameter, writing a 400 response on failure.
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid reimbursement ID",
		})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrNoWorkflowAvailable):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "error", err)
		c.JSON(status, Response{Success: false, Error: "internal server error"})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
