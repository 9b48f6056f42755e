package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
	"github.com/amitoj1996/fieldops-web/internal/auth"
	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/report"
	"github.com/amitoj1996/fieldops-web/internal/service"
)

// TenantHeader optionally overrides the deployment's default tenant.
const TenantHeader = "x-tenant-id"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps          Deps
	defaultTenant string
	logger        *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, defaultTenant string, logger *zap.Logger) *Handlers {
	return &Handlers{deps: deps, defaultTenant: defaultTenant, logger: logger}
}

func (h *Handlers) tenant(c *gin.Context) string {
	if t := strings.TrimSpace(c.GetHeader(TenantHeader)); t != "" {
		return t
	}
	return h.defaultTenant
}

// writeError maps service error kinds onto HTTP status codes.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindPrecondition:
		status = http.StatusConflict
	case apperr.KindUpstream:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Unhandled request error", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Tasks ---

type taskItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createTaskRequest struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Type          string             `json:"type"`
	Assignee      string             `json:"assignee"`
	SLAStart      *time.Time         `json:"slaStart"`
	SLAEnd        *time.Time         `json:"slaEnd"`
	ExpenseLimits map[string]float64 `json:"expenseLimits"`
	Items         []taskItemRequest  `json:"items"`
}

// CreateTask handles POST /api/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	task, err := h.deps.Tasks.Create(c.Request.Context(), service.CreateTaskInput{
		ID:            req.ID,
		TenantID:      h.tenant(c),
		Title:         req.Title,
		Type:          req.Type,
		Assignee:      req.Assignee,
		SLAStart:      req.SLAStart,
		SLAEnd:        req.SLAEnd,
		ExpenseLimits: req.ExpenseLimits,
		Items:         toItems(req.Items),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GetTasks handles GET /api/tasks. With ?taskId= it returns one task,
// otherwise the tenant's full list, newest first.
func (h *Handlers) GetTasks(c *gin.Context) {
	ctx := c.Request.Context()
	if taskID := c.Query("taskId"); taskID != "" {
		task, err := h.deps.Tasks.Get(ctx, h.tenant(c), taskID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
		return
	}
	tasks, err := h.deps.Tasks.List(ctx, h.tenant(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// UpdateTask handles POST /api/tasks/update. The patch is field-level:
// only keys present in the body are applied, so "slaEnd": null clears
// the field while an absent key leaves it alone.
func (h *Handlers) UpdateTask(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}

	taskID := ""
	if v, ok := raw["taskId"]; ok {
		if err := json.Unmarshal(v, &taskID); err != nil {
			h.writeError(c, apperr.Validation("taskId must be a string"))
			return
		}
	}

	patch, err := buildTaskPatch(raw)
	if err != nil {
		h.writeError(c, err)
		return
	}

	task, err := h.deps.Tasks.Update(c.Request.Context(), h.tenant(c), taskID, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func buildTaskPatch(raw map[string]json.RawMessage) (service.TaskPatch, error) {
	var patch service.TaskPatch

	if v, ok := raw["title"]; ok {
		if err := json.Unmarshal(v, &patch.Title); err != nil {
			return patch, apperr.Validation("title must be a string")
		}
	}
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &patch.Type); err != nil {
			return patch, apperr.Validation("type must be a string")
		}
	}
	if v, ok := raw["assignee"]; ok {
		if err := json.Unmarshal(v, &patch.Assignee); err != nil {
			return patch, apperr.Validation("assignee must be a string")
		}
	}
	if v, ok := raw["slaStart"]; ok {
		patch.SetSLAStart = true
		if err := json.Unmarshal(v, &patch.SLAStart); err != nil {
			return patch, apperr.Validation("slaStart must be an RFC3339 timestamp or null")
		}
	}
	if v, ok := raw["slaEnd"]; ok {
		patch.SetSLAEnd = true
		if err := json.Unmarshal(v, &patch.SLAEnd); err != nil {
			return patch, apperr.Validation("slaEnd must be an RFC3339 timestamp or null")
		}
	}
	if v, ok := raw["expenseLimits"]; ok {
		if err := json.Unmarshal(v, &patch.ExpenseLimits); err != nil {
			return patch, apperr.Validation("expenseLimits must map category to a number")
		}
	}
	if v, ok := raw["items"]; ok {
		patch.SetItems = true
		var items []taskItemRequest
		if err := json.Unmarshal(v, &items); err != nil {
			return patch, apperr.Validation("items must be a list of {productId, quantity}")
		}
		patch.Items = toItems(items)
	}
	return patch, nil
}

type deleteTaskRequest struct {
	TaskID  string `json:"taskId"`
	Cascade bool   `json:"cascade"`
}

// DeleteTask handles POST /api/tasks/delete
func (h *Handlers) DeleteTask(c *gin.Context) {
	var req deleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	result, err := h.deps.Tasks.Delete(c.Request.Context(), h.tenant(c), req.TaskID, req.Cascade)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type transitionRequest struct {
	TaskID string         `json:"taskId"`
	Coords *entity.Coords `json:"coords"`
	Reason string         `json:"reason"`
}

// CheckIn handles POST /api/tasks/checkin
func (h *Handlers) CheckIn(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	result, err := h.deps.Tasks.CheckIn(c.Request.Context(), h.tenant(c), req.TaskID, auth.FromContext(c), req.Coords)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckOut handles POST /api/tasks/checkout
func (h *Handlers) CheckOut(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	result, err := h.deps.Tasks.CheckOut(c.Request.Context(), h.tenant(c), req.TaskID, auth.FromContext(c), req.Coords, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListEvents handles GET /api/tasks/events?taskId=
func (h *Handlers) ListEvents(c *gin.Context) {
	taskID := c.Query("taskId")
	if taskID == "" {
		h.writeError(c, apperr.Validation("taskId is required"))
		return
	}
	events, err := h.deps.Tasks.ListEvents(c.Request.Context(), h.tenant(c), taskID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// --- Receipts ---

// authorizeTaskAccess loads the task and checks the caller may touch its
// receipts.
func (h *Handlers) authorizeTaskAccess(c *gin.Context, taskID string) (*entity.Task, error) {
	task, err := h.deps.Tasks.Get(c.Request.Context(), h.tenant(c), taskID)
	if err != nil {
		return nil, err
	}
	p := auth.FromContext(c)
	if !p.IsAdmin() && !p.Matches(task.Assignee) {
		return nil, apperr.Forbidden("caller is neither admin nor the task's assignee")
	}
	return task, nil
}

// UploadSAS handles GET /api/receipts/sas?taskId=&filename=
func (h *Handlers) UploadSAS(c *gin.Context) {
	taskID := c.Query("taskId")
	if _, err := h.authorizeTaskAccess(c, taskID); err != nil {
		h.writeError(c, err)
		return
	}
	access, err := h.deps.Issuer.UploadURL(c.Request.Context(), taskID, c.Query("filename"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, access)
}

// ReadSAS handles GET /api/receipts/readSas?taskId=&blobPath=
func (h *Handlers) ReadSAS(c *gin.Context) {
	taskID := c.Query("taskId")
	if _, err := h.authorizeTaskAccess(c, taskID); err != nil {
		h.writeError(c, err)
		return
	}
	blobPath := c.Query("blobPath")
	if blobPath == "" {
		h.writeError(c, apperr.Validation("blobPath is required"))
		return
	}
	access, err := h.deps.Issuer.ReadURL(c.Request.Context(), blobPath)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, access)
}

type ingestRequest struct {
	TaskID   string `json:"taskId"`
	BlobPath string `json:"blobPath"`
}

// IngestReceipt handles POST /api/receipts/ocr: runs OCR against the
// stored receipt and upserts the resulting Expense.
func (h *Handlers) IngestReceipt(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	if _, err := h.authorizeTaskAccess(c, req.TaskID); err != nil {
		h.writeError(c, err)
		return
	}
	if req.BlobPath == "" {
		h.writeError(c, apperr.Validation("blobPath is required"))
		return
	}

	ctx := c.Request.Context()
	access, err := h.deps.Issuer.ReadURL(ctx, req.BlobPath)
	if err != nil {
		h.writeError(c, err)
		return
	}
	fields, err := h.deps.Analyzer.Analyze(ctx, access.URL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	result, err := h.deps.Expenses.Ingest(ctx, h.tenant(c), req.TaskID, req.BlobPath, fields)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Expenses ---

type finalizeRequest struct {
	ExpenseID   string   `json:"expenseId"`
	TaskID      string   `json:"taskId"`
	BlobPath    string   `json:"blobPath"`
	Category    string   `json:"category"`
	EditedTotal *float64 `json:"editedTotal"`
	Comment     string   `json:"comment"`
}

// FinalizeExpense handles POST /api/expenses/finalize
func (h *Handlers) FinalizeExpense(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	exp, err := h.deps.Expenses.Finalize(c.Request.Context(), h.tenant(c),
		service.ExpenseRef{ExpenseID: req.ExpenseID, TaskID: req.TaskID, BlobPath: req.BlobPath},
		service.FinalizeInput{
			Category:    req.Category,
			EditedTotal: req.EditedTotal,
			Comment:     req.Comment,
			Principal:   auth.FromContext(c),
		})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	expenses, err := h.deps.Expenses.List(c.Request.Context(), h.tenant(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

// ListExpensesByTask handles GET /api/expenses/byTask?taskId=
func (h *Handlers) ListExpensesByTask(c *gin.Context) {
	expenses, err := h.deps.Expenses.ListByTask(c.Request.Context(), h.tenant(c), c.Query("taskId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

// ListPendingExpenses handles GET /api/expenses/pending
func (h *Handlers) ListPendingExpenses(c *gin.Context) {
	expenses, err := h.deps.Expenses.ListPending(c.Request.Context(), h.tenant(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

type decideRequest struct {
	ExpenseID string `json:"expenseId"`
	Note      string `json:"note"`
}

// ApproveExpense handles POST /api/expenses/approve
func (h *Handlers) ApproveExpense(c *gin.Context) {
	h.decide(c, entity.ApprovalApproved)
}

// RejectExpense handles POST /api/expenses/reject
func (h *Handlers) RejectExpense(c *gin.Context) {
	h.decide(c, entity.ApprovalRejected)
}

func (h *Handlers) decide(c *gin.Context, status string) {
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	exp, err := h.deps.Expenses.Decide(c.Request.Context(), h.tenant(c), req.ExpenseID, status, req.Note, auth.FromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// --- Reports ---

func (h *Handlers) buildReport(c *gin.Context) ([]report.Row, error) {
	opts, err := report.ParseOptions(c.Query("fromDate"), c.Query("toDate"))
	if err != nil {
		return nil, err
	}
	return h.deps.Reports.Build(c.Request.Context(), h.tenant(c), opts)
}

// ReportCSV handles GET /api/report/csv
func (h *Handlers) ReportCSV(c *gin.Context) {
	rows, err := h.buildReport(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="report.csv"`)
	c.Status(http.StatusOK)
	if err := report.WriteCSV(c.Writer, rows); err != nil {
		h.logger.Error("Failed to stream CSV report", zap.Error(err))
	}
}

// ReportXLSX handles GET /api/report/xlsx
func (h *Handlers) ReportXLSX(c *gin.Context) {
	rows, err := h.buildReport(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="report.xlsx"`)
	c.Status(http.StatusOK)
	if err := h.deps.Excel.Write(c.Writer, rows); err != nil {
		h.logger.Error("Failed to stream XLSX report", zap.Error(err))
	}
}

// --- Products & directory ---

type createProductRequest struct {
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
}

// ListProducts handles GET /api/products
func (h *Handlers) ListProducts(c *gin.Context) {
	products, err := h.deps.Products.List(c.Request.Context(), h.tenant(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// CreateProduct handles POST /api/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}
	product, err := h.deps.Products.Create(c.Request.Context(), service.CreateProductInput{
		TenantID: h.tenant(c),
		Name:     req.Name,
		SKU:      req.SKU,
		Price:    req.Price,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

type deleteProductRequest struct {
	ProductID string `json:"productId"`
}

// DeleteProduct handles POST /api/products/delete
func (h *Handlers) DeleteProduct(c *gin.Context) {
	var req deleteProductRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		h.writeError(c, apperr.Validation("productId is required"))
		return
	}
	if err := h.deps.Products.Delete(c.Request.Context(), h.tenant(c), req.ProductID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListAssignees handles GET /api/assignees
func (h *Handlers) ListAssignees(c *gin.Context) {
	assignees, err := h.deps.Directory.ListAssignees(c.Request.Context(), h.tenant(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignees)
}

// RecordSeen handles POST /api/users/seen
func (h *Handlers) RecordSeen(c *gin.Context) {
	a, err := h.deps.Directory.RecordSeen(c.Request.Context(), h.tenant(c), auth.FromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// --- Local blob endpoints (development storage mode) ---

// PutBlob handles PUT /blobs/*blobPath
func (h *Handlers) PutBlob(c *gin.Context) {
	blobPath := strings.TrimPrefix(c.Param("blobPath"), "/")
	if err := h.deps.LocalBlobs.Verify(blobPath, "w", c.Query("exp"), c.Query("sig")); err != nil {
		h.writeError(c, err)
		return
	}
	content, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.writeError(c, apperr.Validation("failed to read request body"))
		return
	}
	if err := h.deps.LocalBlobs.Save(blobPath, content); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blobPath": blobPath})
}

// GetBlob handles GET /blobs/*blobPath
func (h *Handlers) GetBlob(c *gin.Context) {
	blobPath := strings.TrimPrefix(c.Param("blobPath"), "/")
	if err := h.deps.LocalBlobs.Verify(blobPath, "r", c.Query("exp"), c.Query("sig")); err != nil {
		h.writeError(c, err)
		return
	}
	content, err := h.deps.LocalBlobs.Read(blobPath)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", content)
}

func toItems(in []taskItemRequest) []entity.TaskItem {
	items := make([]entity.TaskItem, 0, len(in))
	for _, it := range in {
		items = append(items, entity.TaskItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}
