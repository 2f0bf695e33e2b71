package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FrameServerClient talks to a running frame server
type FrameServerClient interface {
	UploadVideo(ctx context.Context, path string) (*ProcessResponse, error)
	UploadImages(ctx context.Context, paths []string) (*ProcessResponse, error)
	Health(ctx context.Context) (*HealthResponse, error)
}

type frameServerClient struct {
	serverURL  string
	httpClient *http.Client
}

// NewFrameServerClient creates a new HTTP client for the frame server
func NewFrameServerClient(serverURL string, timeout time.Duration) FrameServerClient {
	return &frameServerClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// UploadVideo uploads a video file to POST /video
func (s *frameServerClient) UploadVideo(ctx context.Context, path string) (*ProcessResponse, error) {
	return s.upload(ctx, "/video", "video", []string{path})
}

// UploadImages uploads image files to POST /image, all under the "files" field
func (s *frameServerClient) UploadImages(ctx context.Context, paths []string) (*ProcessResponse, error) {
	return s.upload(ctx, "/image", "files", paths)
}

// Health fetches GET /health
func (s *frameServerClient) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serverURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewUploadServerError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &health, nil
}

func (s *frameServerClient) upload(ctx context.Context, endpoint, field string, paths []string) (*ProcessResponse, error) {
	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		err := writeFiles(form, field, paths)
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+endpoint, body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewUploadServerError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	var result ProcessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

func writeFiles(form *multipart.Writer, field string, paths []string) error {
	for _, path := range paths {
		if err := writeFile(form, field, path); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(form *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fileDisposition(field, filepath.Base(path)))
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 64*1024))

	var response errorResponse
	if err := json.Unmarshal(data, &response); err == nil && response.Error != "" {
		return response.Error
	}
	return strings.TrimSpace(string(data))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileDisposition builds a form-data Content-Disposition value with quotes and backslashes escaped
func fileDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}
