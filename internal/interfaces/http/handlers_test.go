package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covana/insurance-backoffice/internal/apperr"
	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/application/service"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
)

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

type stubRefundService struct {
	applyFn  func(ctx context.Context, ref entity.EntityRef, adminID string, patch entity.RefundPatch) (*entity.RefundRecord, error)
	detailFn func(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error)
	listFn   func(ctx context.Context, filter port.RefundListFilter) ([]*entity.RefundRecord, int, error)
}

func (s *stubRefundService) ApplyTransition(ctx context.Context, ref entity.EntityRef, adminID string, patch entity.RefundPatch) (*entity.RefundRecord, error) {
	return s.applyFn(ctx, ref, adminID, patch)
}

func (s *stubRefundService) GetDetail(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error) {
	return s.detailFn(ctx, ref)
}

func (s *stubRefundService) ListRefundable(ctx context.Context, filter port.RefundListFilter) ([]*entity.RefundRecord, int, error) {
	return s.listFn(ctx, filter)
}

func (s *stubRefundService) ExportStatement(ctx context.Context, ref entity.EntityRef) (string, error) {
	return "statements/out.xlsx", nil
}

type stubClaimService struct {
	reviewFn func(ctx context.Context, adminID string, claimID int64, input service.ReviewClaimInput) (*entity.Claim, error)
}

func (s *stubClaimService) CreateClaim(ctx context.Context, input service.CreateClaimInput) (*entity.Claim, error) {
	return nil, apperr.Internal(nil, "not wired in this test")
}

func (s *stubClaimService) ReuploadDocuments(ctx context.Context, userID, claimID int64, documents map[string]port.UploadedFile) (*entity.Claim, error) {
	return nil, apperr.Internal(nil, "not wired in this test")
}

func (s *stubClaimService) ReviewClaim(ctx context.Context, adminID string, claimID int64, input service.ReviewClaimInput) (*entity.Claim, error) {
	return s.reviewFn(ctx, adminID, claimID, input)
}

func (s *stubClaimService) ListClaims(ctx context.Context, userID int64, filter port.ClaimListFilter) ([]*entity.Claim, int, error) {
	return nil, 0, nil
}

func (s *stubClaimService) GetClaimDetail(ctx context.Context, userID, claimID int64) (*entity.Claim, error) {
	return nil, apperr.NotFound("claim %d not found", claimID)
}

// fakeStorage records stored and deleted paths
type fakeStorage struct {
	mu      sync.Mutex
	stored  []string
	deleted []string
}

func (s *fakeStorage) Store(ctx context.Context, category, originalName, mimeType string, content []byte) (*port.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := category + "/" + originalName
	s.stored = append(s.stored, path)
	return &port.UploadedFile{
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         int64(len(content)),
		StoredPath:   path,
	}, nil
}

func (s *fakeStorage) Read(ctx context.Context, relativePath string) ([]byte, error) {
	return nil, nil
}

func (s *fakeStorage) Delete(ctx context.Context, relativePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, relativePath)
	return nil
}

type stubLedger struct{}

func (stubLedger) Create(ctx context.Context, n *entity.Notification) error { return nil }
func (stubLedger) MarkSent(ctx context.Context, id int64) error             { return nil }
func (stubLedger) MarkFailed(ctx context.Context, id int64, reason string) error {
	return nil
}
func (stubLedger) ListRecent(ctx context.Context, limit int) ([]*entity.Notification, error) {
	return []*entity.Notification{{ID: 1, Subject: "Refund update"}}, nil
}
func (stubLedger) ListRetryable(ctx context.Context, limit, maxAttempts int) ([]*entity.Notification, error) {
	return nil, nil
}

func newTestServer(refund service.RefundService, claim service.ClaimService) *Server {
	return NewServer(DefaultServerConfig(), refund, claim, nil, stubLedger{}, testLogger{})
}

func doJSON(t *testing.T, srv *Server, method, path string, headers map[string]string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestApplyRefundTransition_ParsesRefAndPatch(t *testing.T) {
	var gotRef entity.EntityRef
	var gotAdmin string
	var gotPatch entity.RefundPatch
	refund := &stubRefundService{
		applyFn: func(ctx context.Context, ref entity.EntityRef, adminID string, patch entity.RefundPatch) (*entity.RefundRecord, error) {
			gotRef, gotAdmin, gotPatch = ref, adminID, patch
			return &entity.RefundRecord{Ref: ref, RefundStatus: entity.RefundStatusInitiated}, nil
		},
	}
	srv := newTestServer(refund, &stubClaimService{})

	w := doJSON(t, srv, http.MethodPatch, "/api/admin/refunds/travel/9?subtype=single",
		map[string]string{"X-Admin-ID": "admin-1"},
		map[string]interface{}{"refund_status": "refund_initiated", "refund_amount": "120.50"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.EntityRef{Family: entity.FamilyTravel, Subtype: "single", ID: 9}, gotRef)
	assert.Equal(t, "admin-1", gotAdmin)
	require.NotNil(t, gotPatch.RefundStatus)
	assert.Equal(t, entity.RefundStatusInitiated, *gotPatch.RefundStatus)
	require.NotNil(t, gotPatch.RefundAmount)
	assert.Equal(t, "120.5", gotPatch.RefundAmount.String())
}

func TestApplyRefundTransition_RequiresAdminHeader(t *testing.T) {
	srv := newTestServer(&stubRefundService{}, &stubClaimService{})

	w := doJSON(t, srv, http.MethodPatch, "/api/admin/refunds/motor/42", nil,
		map[string]interface{}{"refund_status": "refund_initiated"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplyRefundTransition_RejectsBadAmount(t *testing.T) {
	srv := newTestServer(&stubRefundService{}, &stubClaimService{})

	w := doJSON(t, srv, http.MethodPatch, "/api/admin/refunds/motor/42",
		map[string]string{"X-Admin-ID": "admin-1"},
		map[string]interface{}{"refund_amount": "a lot"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRefundEvidence_DeletesFileWhenTransitionRejected(t *testing.T) {
	refund := &stubRefundService{
		applyFn: func(ctx context.Context, ref entity.EntityRef, adminID string, patch entity.RefundPatch) (*entity.RefundRecord, error) {
			return nil, apperr.PreconditionFailed("refund not available")
		},
	}
	store := &fakeStorage{}
	srv := NewServer(DefaultServerConfig(), refund, &stubClaimService{}, store, stubLedger{}, testLogger{})

	w := doEvidenceUpload(t, srv, "wire.pdf")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, store.stored, 1)
	assert.Equal(t, store.stored, store.deleted, "rejected transition must not leave the stored file behind")

	// An accepted transition keeps its evidence file
	refund.applyFn = func(ctx context.Context, ref entity.EntityRef, adminID string, patch entity.RefundPatch) (*entity.RefundRecord, error) {
		return &entity.RefundRecord{Ref: ref, RefundEvidencePath: *patch.EvidencePath}, nil
	}
	w = doEvidenceUpload(t, srv, "wire2.pdf")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, store.stored, 2)
	assert.Len(t, store.deleted, 1)
}

func doEvidenceUpload(t *testing.T, srv *Server, filename string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("bank receipt"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/refunds/motor/42/evidence", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(headerAdminID, "admin-1")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestErrorKindStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"invalid argument", apperr.InvalidArgument("bad input"), http.StatusBadRequest, "bad input"},
		{"precondition failed", apperr.PreconditionFailed("refund not available"), http.StatusBadRequest, "refund not available"},
		{"not found", apperr.NotFound("entity motor/42 not found"), http.StatusNotFound, "motor/42"},
		{"conflict", apperr.Conflict("claim already in flight"), http.StatusConflict, "in flight"},
		{"forbidden", apperr.Forbidden("not yours"), http.StatusForbidden, "not yours"},
		{"internal details hidden", apperr.Internal(nil, "pq: connection refused"), http.StatusInternalServerError, "internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			refund := &stubRefundService{
				detailFn: func(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error) {
					return nil, tc.err
				},
			}
			srv := newTestServer(refund, &stubClaimService{})

			w := doJSON(t, srv, http.MethodGet, "/api/admin/refunds/motor/42",
				map[string]string{"X-Admin-ID": "admin-1"}, nil)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tc.wantBody)

			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
		})
	}
}

func TestReviewClaim_ForwardsDecision(t *testing.T) {
	var gotInput service.ReviewClaimInput
	claim := &stubClaimService{
		reviewFn: func(ctx context.Context, adminID string, claimID int64, input service.ReviewClaimInput) (*entity.Claim, error) {
			gotInput = input
			return &entity.Claim{ID: claimID, ClaimStatus: input.Decision}, nil
		},
	}
	srv := newTestServer(&stubRefundService{}, claim)

	w := doJSON(t, srv, http.MethodPost, "/api/admin/claims/8/review",
		map[string]string{"X-Admin-ID": "admin-1"},
		map[string]interface{}{
			"decision":      "reupload_required",
			"required_docs": []string{"vehicle_damaged"},
			"remarks":       "damage photo is blurry",
		})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.ClaimStatusReuploadRequired, gotInput.Decision)
	assert.Equal(t, []string{entity.DocTypeVehicleDamaged}, gotInput.RequiredDocs)
	assert.Equal(t, "damage photo is blurry", gotInput.Remarks)
}

func TestListClaims_RequiresNumericUserHeader(t *testing.T) {
	srv := newTestServer(&stubRefundService{}, &stubClaimService{})

	w := doJSON(t, srv, http.MethodGet, "/api/claims", map[string]string{"X-User-ID": "alice"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListNotifications_ReturnsLedgerRows(t *testing.T) {
	srv := newTestServer(&stubRefundService{}, &stubClaimService{})

	w := doJSON(t, srv, http.MethodGet, "/api/admin/notifications",
		map[string]string{"X-Admin-ID": "admin-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Refund update")
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&stubRefundService{}, &stubClaimService{})

	w := doJSON(t, srv, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
