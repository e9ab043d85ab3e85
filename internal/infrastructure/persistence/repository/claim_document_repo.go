package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/infrastructure/persistence/postgres"
)

// ClaimDocumentRepository implements port.ClaimDocumentRepository.
// One slot per (claim, doc type); an upsert on an occupied slot replaces the
// stored path, last write wins.
type ClaimDocumentRepository struct {
	db     *postgres.DB
	logger *zap.Logger
}

// NewClaimDocumentRepository creates a new claim document repository
func NewClaimDocumentRepository(db *postgres.DB, logger *zap.Logger) port.ClaimDocumentRepository {
	return &ClaimDocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the document slot and refreshes ID and timestamp on the
// passed entity
func (r *ClaimDocumentRepository) Upsert(ctx context.Context, doc *entity.ClaimDocument) error {
	query := `
		INSERT INTO claim_documents (claim_id, doc_type, file_path)
		VALUES ($1, $2, $3)
		ON CONFLICT (claim_id, doc_type)
		DO UPDATE SET file_path = EXCLUDED.file_path, created_at = now()
		RETURNING id, created_at`

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		doc.ClaimID,
		doc.DocType,
		doc.FilePath,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert claim document",
			zap.Error(err),
			zap.Int64("claim_id", doc.ClaimID),
			zap.String("doc_type", doc.DocType),
		)
		return fmt.Errorf("failed to upsert claim document: %w", err)
	}

	return nil
}

// GetByClaimID returns every document slot of a claim in doc type order
func (r *ClaimDocumentRepository) GetByClaimID(ctx context.Context, claimID int64) ([]*entity.ClaimDocument, error) {
	query := `
		SELECT id, claim_id, doc_type, file_path, created_at
		FROM claim_documents
		WHERE claim_id = $1
		ORDER BY doc_type`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to get claim documents", zap.Error(err), zap.Int64("claim_id", claimID))
		return nil, fmt.Errorf("failed to get claim documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.ClaimDocument
	for rows.Next() {
		var doc entity.ClaimDocument
		if err := rows.Scan(&doc.ID, &doc.ClaimID, &doc.DocType, &doc.FilePath, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim document: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claim documents: %w", err)
	}

	return docs, nil
}

// Verify interface compliance
var _ port.ClaimDocumentRepository = (*ClaimDocumentRepository)(nil)
