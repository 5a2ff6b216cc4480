// Package media stores uploaded report evidence and profile photos.
package media

import (
	"bytes"
	"context"
	"io"
	"strings"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes are inspected to detect the content type
const sniffLen = 3072

// Store persists an uploaded object and returns the URL it is served from
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// NewStore returns the backend selected by cfg.Backend
func NewStore(cfg config.MediaConfig, logger *observability.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.MediaBackendLocal:
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL, logger), nil
	case config.MediaBackendRemote:
		return NewRemoteStore(cfg, logger), nil
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown media backend %q", cfg.Backend)
	}
}

// Detected is the result of sniffing an upload
type Detected struct {
	ContentType string
	Extension   string
	Kind        models.MediaKind // empty when neither audio nor video
	Ambiguous   bool             // container formats that carry either audio or video
}

// ambiguousContainers hold audio-only recordings as often as video
var ambiguousContainers = map[string]bool{
	"video/webm":      true,
	"audio/webm":      true,
	"video/mp4":       true,
	"audio/mp4":       true,
	"application/ogg": true,
	"audio/ogg":       true,
	"video/ogg":       true,
}

// Detect sniffs the content type of r. The returned reader replays the sniffed bytes.
func Detect(r io.Reader) (Detected, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Detected{}, nil, contextutils.WrapError(err, "failed to read upload")
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	ct := mt.String()
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}

	d := Detected{ContentType: ct, Extension: mt.Extension(), Ambiguous: ambiguousContainers[ct]}
	switch {
	case strings.HasPrefix(ct, "audio/"), ct == "application/ogg":
		d.Kind = models.MediaAudio
	case strings.HasPrefix(ct, "video/"):
		d.Kind = models.MediaVideo
	}
	return d, io.MultiReader(bytes.NewReader(head), r), nil
}

// Accepts reports whether an upload detected as d may be filed as kind
func (d Detected) Accepts(kind models.MediaKind) bool {
	if d.Kind == "" {
		return false
	}
	return d.Kind == kind || d.Ambiguous
}

// IsImage reports whether the upload is a picture
func (d Detected) IsImage() bool {
	return strings.HasPrefix(d.ContentType, "image/")
}
