package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
)

// LocalFileStorage implements port.FileStorage for the local filesystem.
// Stored names are random so an upload can never clobber another user's file
// or smuggle path segments in through its original name.
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) port.FileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Store writes content under a generated name inside the category directory
// and returns the stored file's metadata
func (s *LocalFileStorage) Store(ctx context.Context, category, originalName, mimeType string, content []byte) (*port.UploadedFile, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("file content cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	relPath := filepath.Join(category, uuid.NewString()+ext)
	fullPath := filepath.Join(s.baseDir, relPath)

	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create storage directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File stored",
		zap.String("path", relPath),
		zap.Int("size", len(content)))

	return &port.UploadedFile{
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         int64(len(content)),
		StoredPath:   filepath.ToSlash(relPath),
	}, nil
}

// Read reads content from a previously stored relative path
func (s *LocalFileStorage) Read(ctx context.Context, relPath string) ([]byte, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(relPath))

	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// Delete removes a previously stored file. A missing file is treated as
// already deleted.
func (s *LocalFileStorage) Delete(ctx context.Context, relPath string) error {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(relPath))

	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// validatePath checks that the path stays within baseDir
func (s *LocalFileStorage) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// Verify interface compliance
var _ port.FileStorage = (*LocalFileStorage)(nil)
