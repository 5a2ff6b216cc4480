package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// LocalStore writes uploads into a directory served by the API under a public prefix
type LocalStore struct {
	dir       string
	publicURL string
	logger    *observability.Logger
}

// NewLocalStore creates a store rooted at dir
func NewLocalStore(dir, publicURL string, logger *observability.Logger) *LocalStore {
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/"), logger: logger}
}

// Dir returns the directory files are written to
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes r to dir/name and returns its public URL
func (s *LocalStore) Save(ctx context.Context, name, contentType string, r io.Reader) (result string, err error) {
	ctx, span := observability.TraceMediaFunction(ctx, "local_save",
		attribute.String("media.name", name),
		attribute.String("media.content_type", contentType),
	)
	defer observability.FinishSpan(span, &err)

	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return "", contextutils.WrapError(contextutils.ErrInvalidInput, "media name is empty")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", contextutils.WrapError(contextutils.ErrMediaUpload, "failed to create media directory: "+err.Error())
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", contextutils.WrapError(contextutils.ErrMediaUpload, "failed to create media file: "+err.Error())
	}

	written, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", contextutils.WrapError(contextutils.ErrMediaUpload, "failed to write media file: "+err.Error())
	}

	s.logger.Debug(ctx, "Media stored locally", map[string]interface{}{
		"path":  path,
		"bytes": written,
	})
	return s.publicURL + "/" + name, nil
}
