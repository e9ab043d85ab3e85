package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covana/insurance-backoffice/internal/apperr"
	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/attachment"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/domain/event"
)

type mockClaimRepo struct {
	createFn       func(ctx context.Context, claim *entity.Claim) error
	stampFnolFn    func(ctx context.Context, id int64, fnolNo string) error
	getByIDFn      func(ctx context.Context, id int64) (*entity.Claim, error)
	getForUpdateFn func(ctx context.Context, id int64) (*entity.Claim, error)
	findInFlightFn func(ctx context.Context, proposalID int64) (*entity.Claim, error)
	setStatusFn    func(ctx context.Context, id int64, status string, now time.Time) error
	applyReviewFn  func(ctx context.Context, id int64, upd port.ClaimReviewUpdate) error
	listByUserFn   func(ctx context.Context, userID int64, filter port.ClaimListFilter) ([]*entity.Claim, int, error)
}

func (m *mockClaimRepo) Create(ctx context.Context, claim *entity.Claim) error {
	return m.createFn(ctx, claim)
}

func (m *mockClaimRepo) StampFnol(ctx context.Context, id int64, fnolNo string) error {
	return m.stampFnolFn(ctx, id, fnolNo)
}

func (m *mockClaimRepo) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockClaimRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Claim, error) {
	return m.getForUpdateFn(ctx, id)
}

func (m *mockClaimRepo) FindInFlightByProposal(ctx context.Context, proposalID int64) (*entity.Claim, error) {
	return m.findInFlightFn(ctx, proposalID)
}

func (m *mockClaimRepo) SetStatus(ctx context.Context, id int64, status string, now time.Time) error {
	return m.setStatusFn(ctx, id, status, now)
}

func (m *mockClaimRepo) ApplyReview(ctx context.Context, id int64, upd port.ClaimReviewUpdate) error {
	return m.applyReviewFn(ctx, id, upd)
}

func (m *mockClaimRepo) ListByUser(ctx context.Context, userID int64, filter port.ClaimListFilter) ([]*entity.Claim, int, error) {
	return m.listByUserFn(ctx, userID, filter)
}

type mockDocRepo struct {
	upserted []*entity.ClaimDocument
	getFn    func(ctx context.Context, claimID int64) ([]*entity.ClaimDocument, error)
}

func (m *mockDocRepo) Upsert(ctx context.Context, doc *entity.ClaimDocument) error {
	m.upserted = append(m.upserted, doc)
	return nil
}

func (m *mockDocRepo) GetByClaimID(ctx context.Context, claimID int64) ([]*entity.ClaimDocument, error) {
	if m.getFn != nil {
		return m.getFn(ctx, claimID)
	}
	return append([]*entity.ClaimDocument(nil), m.upserted...), nil
}

type mockProposalRepo struct {
	getMotorFn func(ctx context.Context, id int64) (*entity.MotorProposal, error)
}

func (m *mockProposalRepo) GetMotorByID(ctx context.Context, id int64) (*entity.MotorProposal, error) {
	return m.getMotorFn(ctx, id)
}

func issuedProposal() *entity.MotorProposal {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	return &entity.MotorProposal{
		ID:            11,
		UserID:        7,
		UserEmail:     "driver@example.com",
		PolicyNo:      "POL-2026-000011",
		PolicyStatus:  entity.PolicyStatusIssued,
		CoverageStart: &start,
		CoverageEnd:   &end,
		VehicleRegNo:  "SGX1234A",
	}
}

func fullDocumentSet() map[string]port.UploadedFile {
	docs := make(map[string]port.UploadedFile, len(entity.MandatoryClaimDocTypes))
	for _, tag := range entity.MandatoryClaimDocTypes {
		docs[tag] = port.UploadedFile{StoredPath: "claims/7/" + tag + ".jpg"}
	}
	return docs
}

func validCreateInput() CreateClaimInput {
	return CreateClaimInput{
		UserID:              7,
		ProposalID:          11,
		IncidentDate:        time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		IncidentDescription: "rear-end collision at junction",
		Documents:           fullDocumentSet(),
	}
}

func newClaimFixture(claimRepo *mockClaimRepo, docRepo *mockDocRepo, proposalRepo *mockProposalRepo) (ClaimService, *recordingDispatcher) {
	disp := &recordingDispatcher{}
	svc := NewClaimService(
		claimRepo, docRepo, proposalRepo,
		&mockTxManager{}, disp,
		attachment.NewResolver("https://files.example.com"),
		noopLogger{},
	)
	return svc, disp
}

func TestCreateClaim_Success(t *testing.T) {
	var stampedFnol string
	claimRepo := &mockClaimRepo{
		findInFlightFn: func(ctx context.Context, proposalID int64) (*entity.Claim, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, claim *entity.Claim) error {
			claim.ID = 5
			return nil
		},
		stampFnolFn: func(ctx context.Context, id int64, fnolNo string) error {
			stampedFnol = fnolNo
			return nil
		},
	}
	docRepo := &mockDocRepo{}
	proposalRepo := &mockProposalRepo{
		getMotorFn: func(ctx context.Context, id int64) (*entity.MotorProposal, error) {
			return issuedProposal(), nil
		},
	}
	svc, disp := newClaimFixture(claimRepo, docRepo, proposalRepo)

	claim, err := svc.CreateClaim(context.Background(), validCreateInput())
	require.NoError(t, err)

	wantFnol := entity.FnolNo(5, time.Now().Year())
	assert.Equal(t, wantFnol, stampedFnol)
	assert.Equal(t, wantFnol, claim.FnolNo)
	assert.Equal(t, entity.ClaimStatusPendingReview, claim.ClaimStatus)
	assert.Equal(t, "POL-2026-000011", claim.ProposalSnapshot.PolicyNo, "proposal fields are frozen into the claim")
	assert.Len(t, docRepo.upserted, len(entity.MandatoryClaimDocTypes))
	for _, doc := range claim.Documents {
		assert.Equal(t, "https://files.example.com/"+doc.FilePath, doc.FileURL)
	}

	events := disp.all()
	require.Len(t, events, 2)
	byAudience := map[event.Audience]*event.Event{}
	for _, evt := range events {
		byAudience[evt.Audience] = evt
	}
	require.Contains(t, byAudience, event.AudienceUser)
	require.Contains(t, byAudience, event.AudienceAdmin)
	assert.Equal(t, wantFnol, byAudience[event.AudienceUser].GetPayloadString("fnol_no"))
	assert.Equal(t, "driver@example.com", byAudience[event.AudienceUser].UserEmail)
}

func TestCreateClaim_MissingMandatoryDocument(t *testing.T) {
	docs := fullDocumentSet()
	delete(docs, entity.DocTypeVehicleDamaged)
	input := validCreateInput()
	input.Documents = docs

	svc, disp := newClaimFixture(&mockClaimRepo{}, &mockDocRepo{}, &mockProposalRepo{})

	_, err := svc.CreateClaim(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Contains(t, err.Error(), entity.DocTypeVehicleDamaged, "the error must name the missing slot")
	assert.Empty(t, disp.all())
}

func TestCreateClaim_ProposalChecks(t *testing.T) {
	cases := []struct {
		name     string
		proposal *entity.MotorProposal
		incident time.Time
		wantKind apperr.Kind
	}{
		{
			name:     "proposal not found",
			proposal: nil,
			incident: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			wantKind: apperr.KindNotFound,
		},
		{
			name: "proposal owned by someone else",
			proposal: func() *entity.MotorProposal {
				p := issuedProposal()
				p.UserID = 99
				return p
			}(),
			incident: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			wantKind: apperr.KindForbidden,
		},
		{
			name: "policy not issued",
			proposal: func() *entity.MotorProposal {
				p := issuedProposal()
				p.PolicyNo = ""
				return p
			}(),
			incident: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			wantKind: apperr.KindPreconditionFailed,
		},
		{
			name:     "incident outside coverage",
			proposal: issuedProposal(),
			incident: time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC),
			wantKind: apperr.KindInvalidArgument,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proposalRepo := &mockProposalRepo{
				getMotorFn: func(ctx context.Context, id int64) (*entity.MotorProposal, error) {
					return tc.proposal, nil
				},
			}
			svc, _ := newClaimFixture(&mockClaimRepo{}, &mockDocRepo{}, proposalRepo)

			input := validCreateInput()
			input.IncidentDate = tc.incident
			_, err := svc.CreateClaim(context.Background(), input)
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, apperr.KindOf(err))
		})
	}
}

func TestCreateClaim_RejectsSecondInFlight(t *testing.T) {
	claimRepo := &mockClaimRepo{
		findInFlightFn: func(ctx context.Context, proposalID int64) (*entity.Claim, error) {
			return &entity.Claim{ID: 3, FnolNo: "FNOL-MOT-2026-000003", ClaimStatus: entity.ClaimStatusPendingReview}, nil
		},
		createFn: func(ctx context.Context, claim *entity.Claim) error {
			t.Fatal("a blocked submission must not insert")
			return nil
		},
	}
	proposalRepo := &mockProposalRepo{
		getMotorFn: func(ctx context.Context, id int64) (*entity.MotorProposal, error) {
			return issuedProposal(), nil
		},
	}
	svc, _ := newClaimFixture(claimRepo, &mockDocRepo{}, proposalRepo)

	_, err := svc.CreateClaim(context.Background(), validCreateInput())
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "FNOL-MOT-2026-000003")
}

func TestReuploadDocuments_HonorsAllowList(t *testing.T) {
	locked := &entity.Claim{
		ID:           8,
		UserID:       7,
		FnolNo:       "FNOL-MOT-2026-000008",
		ClaimStatus:  entity.ClaimStatusReuploadRequired,
		RequiredDocs: []string{entity.DocTypeVehicleDamaged},
	}
	statusSet := ""
	claimRepo := &mockClaimRepo{
		getForUpdateFn: func(ctx context.Context, id int64) (*entity.Claim, error) {
			return locked, nil
		},
		setStatusFn: func(ctx context.Context, id int64, status string, now time.Time) error {
			statusSet = status
			return nil
		},
	}
	docRepo := &mockDocRepo{}
	svc, disp := newClaimFixture(claimRepo, docRepo, &mockProposalRepo{})

	_, err := svc.ReuploadDocuments(context.Background(), 7, 8, map[string]port.UploadedFile{
		entity.DocTypeVehicleFront: {StoredPath: "claims/7/front.jpg"},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Empty(t, docRepo.upserted)

	claim, err := svc.ReuploadDocuments(context.Background(), 7, 8, map[string]port.UploadedFile{
		entity.DocTypeVehicleDamaged: {StoredPath: "claims/7/damaged-2.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusPendingReview, statusSet)
	assert.Equal(t, entity.ClaimStatusPendingReview, claim.ClaimStatus)
	require.Len(t, docRepo.upserted, 1)
	assert.Equal(t, entity.DocTypeVehicleDamaged, docRepo.upserted[0].DocType)

	events := disp.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeClaimReuploaded, events[0].Type)
	assert.Equal(t, event.AudienceAdmin, events[0].Audience)
}

func TestReuploadDocuments_RequiresRequestedState(t *testing.T) {
	claimRepo := &mockClaimRepo{
		getForUpdateFn: func(ctx context.Context, id int64) (*entity.Claim, error) {
			return &entity.Claim{ID: 8, UserID: 7, ClaimStatus: entity.ClaimStatusPendingReview}, nil
		},
	}
	svc, _ := newClaimFixture(claimRepo, &mockDocRepo{}, &mockProposalRepo{})

	_, err := svc.ReuploadDocuments(context.Background(), 7, 8, map[string]port.UploadedFile{
		entity.DocTypeVehicleFront: {StoredPath: "claims/7/front.jpg"},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
}

func TestReuploadDocuments_ForbiddenForOtherUser(t *testing.T) {
	claimRepo := &mockClaimRepo{
		getForUpdateFn: func(ctx context.Context, id int64) (*entity.Claim, error) {
			return &entity.Claim{ID: 8, UserID: 99, ClaimStatus: entity.ClaimStatusReuploadRequired}, nil
		},
	}
	svc, _ := newClaimFixture(claimRepo, &mockDocRepo{}, &mockProposalRepo{})

	_, err := svc.ReuploadDocuments(context.Background(), 7, 8, map[string]port.UploadedFile{
		entity.DocTypeVehicleFront: {StoredPath: "claims/7/front.jpg"},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestReviewClaim_ApprovalStampsClosedAt(t *testing.T) {
	var captured port.ClaimReviewUpdate
	claimRepo := &mockClaimRepo{
		getForUpdateFn: func(ctx context.Context, id int64) (*entity.Claim, error) {
			return &entity.Claim{ID: 8, UserID: 7, FnolNo: "FNOL-MOT-2026-000008", ClaimStatus: entity.ClaimStatusPendingReview}, nil
		},
		applyReviewFn: func(ctx context.Context, id int64, upd port.ClaimReviewUpdate) error {
			captured = upd
			return nil
		},
	}
	svc, disp := newClaimFixture(claimRepo, &mockDocRepo{}, &mockProposalRepo{})

	claim, err := svc.ReviewClaim(context.Background(), "admin-1", 8, ReviewClaimInput{
		Decision:     entity.ClaimStatusApproved,
		RequiredDocs: []string{entity.DocTypeVehicleFront},
		Remarks:      "all documents verified",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ClaimStatusApproved, captured.ClaimStatus)
	require.NotNil(t, captured.ClosedAt, "terminal decisions stamp closed_at")
	assert.Nil(t, captured.RequiredDocs, "required docs only apply to reupload decisions")
	assert.Equal(t, "admin-1", captured.LastActionByAdmin)
	assert.Equal(t, entity.ClaimStatusApproved, claim.ClaimStatus)

	events := disp.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeClaimReviewed, events[0].Type)
	assert.Equal(t, event.AudienceUser, events[0].Audience)
}

func TestReviewClaim_ClosedAtIsWriteOnce(t *testing.T) {
	firstStamp := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var captured port.ClaimReviewUpdate
	claimRepo := &mockClaimRepo{
		getForUpdateFn: func(ctx context.Context, id int64) (*entity.Claim, error) {
			// Reupload decisions keep the claim open, so a prior stamp can
			// coexist with a non-terminal state
			return &entity.Claim{
				ID: 8, UserID: 7,
				ClaimStatus: entity.ClaimStatusReuploadRequired,
				ClosedAt:    &firstStamp,
			}, nil
		},
		applyReviewFn: func(ctx context.Context, id int64, upd port.ClaimReviewUpdate) error {
			captured = upd
			return nil
		},
	}
	svc, _ := newClaimFixture(claimRepo, &mockDocRepo{}, &mockProposalRepo{})

	_, err := svc.ReviewClaim(context.Background(), "admin-1", 8, ReviewClaimInput{
		Decision: entity.ClaimStatusRejected,
	})
	require.NoError(t, err)
	require.NotNil(t, captured.ClosedAt)
	assert.True(t, captured.ClosedAt.Equal(firstStamp))
}

func TestReviewClaim_TerminalClaimRejected(t *testing.T) {
	claimRepo := &mockClaimRepo{
		getForUpdateFn: func(ctx context.Context, id int64) (*entity.Claim, error) {
			return &entity.Claim{ID: 8, UserID: 7, ClaimStatus: entity.ClaimStatusApproved}, nil
		},
	}
	svc, _ := newClaimFixture(claimRepo, &mockDocRepo{}, &mockProposalRepo{})

	_, err := svc.ReviewClaim(context.Background(), "admin-1", 8, ReviewClaimInput{
		Decision: entity.ClaimStatusRejected,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
}

func TestReviewClaim_ValidatesInput(t *testing.T) {
	svc, _ := newClaimFixture(&mockClaimRepo{}, &mockDocRepo{}, &mockProposalRepo{})

	_, err := svc.ReviewClaim(context.Background(), "", 8, ReviewClaimInput{Decision: entity.ClaimStatusApproved})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.ReviewClaim(context.Background(), "admin-1", 8, ReviewClaimInput{Decision: "escalated"})
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))

	_, err = svc.ReviewClaim(context.Background(), "admin-1", 8, ReviewClaimInput{
		Decision:     entity.ClaimStatusReuploadRequired,
		RequiredDocs: []string{"selfie"},
	})
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}

func TestListClaims_ClampsPaging(t *testing.T) {
	var captured port.ClaimListFilter
	claimRepo := &mockClaimRepo{
		listByUserFn: func(ctx context.Context, userID int64, filter port.ClaimListFilter) ([]*entity.Claim, int, error) {
			captured = filter
			return []*entity.Claim{{ID: 1}}, 1, nil
		},
	}
	svc, _ := newClaimFixture(claimRepo, &mockDocRepo{}, &mockProposalRepo{})

	claims, total, err := svc.ListClaims(context.Background(), 7, port.ClaimListFilter{Page: -3, Limit: 9999})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, claims, 1)
	assert.Equal(t, 1, captured.Page)
	assert.Equal(t, 100, captured.Limit)
}

func TestGetClaimDetail_OwnershipAndDocs(t *testing.T) {
	claimRepo := &mockClaimRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Claim, error) {
			if id != 8 {
				return nil, nil
			}
			return &entity.Claim{ID: 8, UserID: 7, ClaimStatus: entity.ClaimStatusPendingReview}, nil
		},
	}
	docRepo := &mockDocRepo{
		getFn: func(ctx context.Context, claimID int64) ([]*entity.ClaimDocument, error) {
			return []*entity.ClaimDocument{
				{ClaimID: claimID, DocType: entity.DocTypeVehicleFront, FilePath: "claims/7/front.jpg"},
			}, nil
		},
	}
	svc, _ := newClaimFixture(claimRepo, docRepo, &mockProposalRepo{})

	claim, err := svc.GetClaimDetail(context.Background(), 7, 8)
	require.NoError(t, err)
	require.Len(t, claim.Documents, 1)
	assert.Equal(t, "https://files.example.com/claims/7/front.jpg", claim.Documents[0].FileURL)

	_, err = svc.GetClaimDetail(context.Background(), 99, 8)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.GetClaimDetail(context.Background(), 7, 404)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateClaim_RollsBackOnStampFailure(t *testing.T) {
	claimRepo := &mockClaimRepo{
		findInFlightFn: func(ctx context.Context, proposalID int64) (*entity.Claim, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, claim *entity.Claim) error {
			claim.ID = 5
			return nil
		},
		stampFnolFn: func(ctx context.Context, id int64, fnolNo string) error {
			return fmt.Errorf("claim %d not found or fnol already stamped", id)
		},
	}
	proposalRepo := &mockProposalRepo{
		getMotorFn: func(ctx context.Context, id int64) (*entity.MotorProposal, error) {
			return issuedProposal(), nil
		},
	}
	svc, disp := newClaimFixture(claimRepo, &mockDocRepo{}, proposalRepo)

	_, err := svc.CreateClaim(context.Background(), validCreateInput())
	require.Error(t, err)
	assert.Empty(t, disp.all(), "a failed transaction must not notify")
}
