package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/covana/insurance-backoffice/internal/apperr"
	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/application/service"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
)

// Identity headers set by the gateway in front of this service
const (
	headerUserID  = "X-User-ID"
	headerAdminID = "X-Admin-ID"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	refundService service.RefundService
	claimService  service.ClaimService
	storage       port.FileStorage
	notifRepo     port.NotificationRepository
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	refundService service.RefundService,
	claimService service.ClaimService,
	storage port.FileStorage,
	notifRepo port.NotificationRepository,
	logger Logger,
) *Handlers {
	return &Handlers{
		refundService: refundService,
		claimService:  claimService,
		storage:       storage,
		notifRepo:     notifRepo,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ListResponse wraps paginated results
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// RefundTransitionRequest carries a refund patch; absent fields keep their
// stored values
type RefundTransitionRequest struct {
	RefundStatus    *string `json:"refund_status"`
	RefundAmount    *string `json:"refund_amount"`
	RefundReference *string `json:"refund_reference"`
	RefundRemarks   *string `json:"refund_remarks"`
}

// ReviewClaimRequest carries an admin claim decision
type ReviewClaimRequest struct {
	Decision     string   `json:"decision"`
	RequiredDocs []string `json:"required_docs"`
	Remarks      string   `json:"remarks"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"status": "healthy"},
	})
}

// ListRefundable handles GET /api/admin/refunds
func (h *Handlers) ListRefundable(c *gin.Context) {
	if _, ok := h.adminID(c); !ok {
		return
	}

	filter := port.RefundListFilter{
		RefundStatus: c.Query("refund_status"),
		Family:       c.Query("family"),
		Page:         intQuery(c, "page", 1),
		Limit:        intQuery(c, "limit", 20),
	}

	records, total, err := h.refundService.ListRefundable(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ListResponse{
			Items: records,
			Total: total,
			Page:  filter.Page,
			Limit: filter.Limit,
		},
	})
}

// GetRefundDetail handles GET /api/admin/refunds/:family/:id
func (h *Handlers) GetRefundDetail(c *gin.Context) {
	if _, ok := h.adminID(c); !ok {
		return
	}
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}

	rec, err := h.refundService.GetDetail(c.Request.Context(), ref)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// ApplyRefundTransition handles PATCH /api/admin/refunds/:family/:id
func (h *Handlers) ApplyRefundTransition(c *gin.Context) {
	adminID, ok := h.adminID(c)
	if !ok {
		return
	}
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}

	var req RefundTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.InvalidArgument("invalid request body: %v", err))
		return
	}

	patch, err := toRefundPatch(req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rec, err := h.refundService.ApplyTransition(c.Request.Context(), ref, adminID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// UploadRefundEvidence handles POST /api/admin/refunds/:family/:id/evidence.
// The uploaded file is stored first; the stored path then rides a normal
// transition patch so it obeys the same gating as every other refund write.
func (h *Handlers) UploadRefundEvidence(c *gin.Context) {
	adminID, ok := h.adminID(c)
	if !ok {
		return
	}
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}

	upload, ok := h.readUpload(c, "file", "refunds/evidence")
	if !ok {
		return
	}

	patch := entity.RefundPatch{EvidencePath: &upload.StoredPath}
	if remarks := c.PostForm("refund_remarks"); remarks != "" {
		patch.RefundRemarks = &remarks
	}

	rec, err := h.refundService.ApplyTransition(c.Request.Context(), ref, adminID, patch)
	if err != nil {
		// The gate rejected the transition; the stored file is an orphan
		if delErr := h.storage.Delete(c.Request.Context(), upload.StoredPath); delErr != nil {
			h.logger.Error("Failed to delete rejected evidence file",
				"path", upload.StoredPath, "error", delErr)
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// ExportRefundStatement handles POST /api/admin/refunds/:family/:id/statement
func (h *Handlers) ExportRefundStatement(c *gin.Context) {
	if _, ok := h.adminID(c); !ok {
		return
	}
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}

	path, err := h.refundService.ExportStatement(c.Request.Context(), ref)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"path": path}})
}

// ReviewClaim handles POST /api/admin/claims/:id/review
func (h *Handlers) ReviewClaim(c *gin.Context) {
	adminID, ok := h.adminID(c)
	if !ok {
		return
	}
	claimID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ReviewClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.InvalidArgument("invalid request body: %v", err))
		return
	}

	claim, err := h.claimService.ReviewClaim(c.Request.Context(), adminID, claimID, service.ReviewClaimInput{
		Decision:     req.Decision,
		RequiredDocs: req.RequiredDocs,
		Remarks:      req.Remarks,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// ListNotifications handles GET /api/admin/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	if _, ok := h.adminID(c); !ok {
		return
	}

	limit := intQuery(c, "limit", 50)
	if limit > 200 {
		limit = 200
	}

	notifications, err := h.notifRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

// adminID extracts the acting admin from the identity header
func (h *Handlers) adminID(c *gin.Context) (string, bool) {
	adminID := strings.TrimSpace(c.GetHeader(headerAdminID))
	if adminID == "" {
		h.respondError(c, apperr.Unauthorized("missing %s header", headerAdminID))
		return "", false
	}
	return adminID, true
}

// userID extracts the acting user from the identity header
func (h *Handlers) userID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.GetHeader(headerUserID))
	if raw == "" {
		h.respondError(c, apperr.Unauthorized("missing %s header", headerUserID))
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, apperr.Unauthorized("invalid %s header", headerUserID))
		return 0, false
	}
	return id, true
}

// entityRef parses :family/:id path params plus the optional subtype query
func (h *Handlers) entityRef(c *gin.Context) (entity.EntityRef, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.InvalidArgument("invalid entity id %q", c.Param("id")))
		return entity.EntityRef{}, false
	}
	return entity.EntityRef{
		Family:  entity.Family(c.Param("family")),
		Subtype: c.Query("subtype"),
		ID:      id,
	}, true
}

// pathID parses the :id path param
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.InvalidArgument("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// respondError maps application error kinds onto HTTP statuses
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
		switch appErr.Kind {
		case apperr.KindInvalidArgument, apperr.KindPreconditionFailed:
			status = http.StatusBadRequest
		case apperr.KindUnauthorized:
			status = http.StatusUnauthorized
		case apperr.KindForbidden:
			status = http.StatusForbidden
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindConflict:
			status = http.StatusConflict
		default:
			message = "internal error"
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, Response{Success: false, Error: message})
}

// toRefundPatch converts the wire request into a typed patch
func toRefundPatch(req RefundTransitionRequest) (entity.RefundPatch, error) {
	patch := entity.RefundPatch{
		RefundStatus:    req.RefundStatus,
		RefundReference: req.RefundReference,
		RefundRemarks:   req.RefundRemarks,
	}
	if req.RefundAmount != nil {
		amount, err := decimal.NewFromString(*req.RefundAmount)
		if err != nil {
			return entity.RefundPatch{}, apperr.InvalidArgument("invalid refund amount %q", *req.RefundAmount)
		}
		patch.RefundAmount = &amount
	}
	return patch, nil
}

// intQuery parses an int query param with a fallback
func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
