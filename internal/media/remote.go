package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"noisewatch/internal/config"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// RemoteStore uploads to a hosted media service using an unsigned upload preset
type RemoteStore struct {
	uploadURL string
	preset    string
	apiKey    string
	client    *http.Client
	logger    *observability.Logger
}

// NewRemoteStore creates a remote store with an instrumented HTTP client
func NewRemoteStore(cfg config.MediaConfig, logger *observability.Logger) *RemoteStore {
	return &RemoteStore{
		uploadURL: cfg.RemoteUploadURL,
		preset:    cfg.RemoteUploadPreset,
		apiKey:    cfg.RemoteAPIKey,
		client: &http.Client{
			Timeout:   config.MediaUploadTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Save streams r as a multipart "file" field and returns the hosted secure URL
func (s *RemoteStore) Save(ctx context.Context, name, contentType string, r io.Reader) (result string, err error) {
	ctx, span := observability.TraceMediaFunction(ctx, "remote_save",
		attribute.String("media.name", name),
		attribute.String("media.content_type", contentType),
	)
	defer observability.FinishSpan(span, &err)

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, name, s.preset, s.apiKey, r))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", contextutils.WrapError(contextutils.ErrMediaUpload, "failed to build upload request: "+err.Error())
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", contextutils.WrapError(contextutils.ErrMediaUpload, "upload request failed: "+err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	var body uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", contextutils.WrapError(contextutils.ErrMediaUpload, fmt.Sprintf("unreadable upload response (status %d)", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := http.StatusText(resp.StatusCode)
		if body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return "", contextutils.WrapErrorf(contextutils.ErrMediaUpload, "media host rejected upload: %s", msg)
	}

	url := body.SecureURL
	if url == "" {
		url = body.URL
	}
	if url == "" {
		return "", contextutils.WrapError(contextutils.ErrMediaUpload, "media host returned no URL")
	}

	s.logger.Debug(ctx, "Media uploaded", map[string]interface{}{"url": url})
	return url, nil
}

func writeUploadForm(form *multipart.Writer, name, preset, apiKey string, r io.Reader) error {
	if preset != "" {
		if err := form.WriteField("upload_preset", preset); err != nil {
			return err
		}
	}
	if apiKey != "" {
		if err := form.WriteField("api_key", apiKey); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return form.Close()
}
