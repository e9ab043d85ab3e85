package port

import "context"

// UploadedFile describes an accepted upload. The engine only ever consumes
// StoredPath, a path relative to the upload root.
type UploadedFile struct {
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	StoredPath   string `json:"stored_path"`
}

// FileStorage stores raw upload bytes and yields the durable relative path
type FileStorage interface {
	Store(ctx context.Context, category, originalName, mimeType string, content []byte) (*UploadedFile, error)
	Read(ctx context.Context, relativePath string) ([]byte, error)
	// Delete removes a stored file; deleting a missing path is not an error
	Delete(ctx context.Context, relativePath string) error
}
