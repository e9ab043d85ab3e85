package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/covana/insurance-backoffice/internal/apperr"
	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/application/service"
	"github.com/covana/insurance-backoffice/pkg/utils"
)

// maxUploadBytes caps a single uploaded document
const maxUploadBytes = 20 << 20

// CreateClaim handles POST /api/claims. The body is a multipart form:
// scalar fields plus one file part per document type tag.
func (h *Handlers) CreateClaim(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	proposalID, err := strconv.ParseInt(c.PostForm("proposal_id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.InvalidArgument("invalid proposal_id %q", c.PostForm("proposal_id")))
		return
	}
	incidentDate, err := parseDate(c.PostForm("incident_date"))
	if err != nil {
		h.respondError(c, apperr.InvalidArgument("invalid incident_date %q", c.PostForm("incident_date")))
		return
	}

	documents, ok := h.readDocumentUploads(c, fmt.Sprintf("claims/%d", userID))
	if !ok {
		return
	}

	claim, err := h.claimService.CreateClaim(c.Request.Context(), service.CreateClaimInput{
		UserID:              userID,
		ProposalID:          proposalID,
		IncidentDate:        incidentDate,
		IncidentDescription: utils.SanitizeString(c.PostForm("incident_description")),
		Documents:           documents,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: claim})
}

// ReuploadClaimDocuments handles POST /api/claims/:id/documents
func (h *Handlers) ReuploadClaimDocuments(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	claimID, ok := h.pathID(c)
	if !ok {
		return
	}

	documents, ok := h.readDocumentUploads(c, fmt.Sprintf("claims/%d", userID))
	if !ok {
		return
	}

	claim, err := h.claimService.ReuploadDocuments(c.Request.Context(), userID, claimID, documents)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// ListClaims handles GET /api/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	filter := port.ClaimListFilter{
		ClaimStatus: c.Query("claim_status"),
		Page:        intQuery(c, "page", 1),
		Limit:       intQuery(c, "limit", 20),
	}

	claims, total, err := h.claimService.ListClaims(c.Request.Context(), userID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ListResponse{
			Items: claims,
			Total: total,
			Page:  filter.Page,
			Limit: filter.Limit,
		},
	})
}

// GetClaimDetail handles GET /api/claims/:id
func (h *Handlers) GetClaimDetail(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	claimID, ok := h.pathID(c)
	if !ok {
		return
	}

	claim, err := h.claimService.GetClaimDetail(c.Request.Context(), userID, claimID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// readDocumentUploads stores every file part of the multipart form, keyed by
// its field name, which is the document type tag
func (h *Handlers) readDocumentUploads(c *gin.Context, category string) (map[string]port.UploadedFile, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		h.respondError(c, apperr.InvalidArgument("invalid multipart form: %v", err))
		return nil, false
	}

	documents := make(map[string]port.UploadedFile, len(form.File))
	for tag, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		// One document per slot; extra parts under the same tag are rejected
		if len(headers) > 1 {
			h.respondError(c, apperr.InvalidArgument("multiple files for document type %q", tag))
			return nil, false
		}
		upload, ok := h.storeUpload(c, headers[0], category)
		if !ok {
			return nil, false
		}
		documents[tag] = *upload
	}
	return documents, true
}

// readUpload stores a single named file part
func (h *Handlers) readUpload(c *gin.Context, field, category string) (*port.UploadedFile, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		h.respondError(c, apperr.InvalidArgument("missing file field %q", field))
		return nil, false
	}
	return h.storeUpload(c, header, category)
}

func (h *Handlers) storeUpload(c *gin.Context, header *multipart.FileHeader, category string) (*port.UploadedFile, bool) {
	if header.Size > maxUploadBytes {
		h.respondError(c, apperr.InvalidArgument("file %q exceeds the %d MB limit", header.Filename, maxUploadBytes>>20))
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		h.respondError(c, apperr.InvalidArgument("cannot open uploaded file %q", header.Filename))
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		h.respondError(c, fmt.Errorf("read upload: %w", err))
		return nil, false
	}
	if len(content) > maxUploadBytes {
		h.respondError(c, apperr.InvalidArgument("file %q exceeds the %d MB limit", header.Filename, maxUploadBytes>>20))
		return nil, false
	}

	upload, err := h.storage.Store(c.Request.Context(), category, header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		h.respondError(c, fmt.Errorf("store upload: %w", err))
		return nil, false
	}
	return upload, true
}

// parseDate accepts a date or an RFC 3339 timestamp
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
