package classification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yeti47/framesight/server/core/ccc/logging"
	"github.com/yeti47/framesight/server/core/frames"
	"github.com/yeti47/framesight/server/core/sessions"
)

// maxErrorBodyBytes bounds how much of a failed response is kept for diagnostics
const maxErrorBodyBytes = 64 * 1024

// Classifier sends images to the remote classification service
type Classifier interface {
	// Classify submits the frames in order as one multipart request
	Classify(ctx context.Context, frames []frames.Frame) (*Result, error)
}

// Settings describes the remote endpoint
type Settings struct {
	URL string
	// FieldName is the multipart field repeated for every image
	FieldName string
	// ResultKey names the JSON array holding one item per image
	ResultKey string
	Timeout   time.Duration
}

// DefaultSettings matches a classifier listening on localhost:8000
func DefaultSettings() Settings {
	return Settings{
		URL:       "http://localhost:8000/predict/",
		FieldName: "files",
		ResultKey: "image_base64",
		Timeout:   2 * time.Minute,
	}
}

type httpClassifier struct {
	logger     logging.Logger
	settings   Settings
	httpClient *http.Client
}

// NewHTTPClassifier creates a classifier posting multipart requests to settings.URL
func NewHTTPClassifier(logger logging.Logger, settings Settings) Classifier {
	if logger == nil {
		logger = logging.NopLogger
	}
	defaults := DefaultSettings()
	if settings.FieldName == "" {
		settings.FieldName = defaults.FieldName
	}
	if settings.ResultKey == "" {
		settings.ResultKey = defaults.ResultKey
	}

	return &httpClassifier{
		logger:   logger,
		settings: settings,
		httpClient: &http.Client{
			Timeout: settings.Timeout,
		},
	}
}

func (c *httpClassifier) Classify(ctx context.Context, images []frames.Frame) (*Result, error) {
	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	// frames are streamed from disk so a long video is never held in memory
	readErr := make(chan error, 1)
	go func() {
		err := c.writeParts(form, images)
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
		readErr <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.URL, body)
	if err != nil {
		body.CloseWithError(err)
		<-readErr
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		body.CloseWithError(err)
		// a frame that could not be read aborts the upload; report that rather than the broken request
		if writeErr := <-readErr; sessions.IsStorageError(writeErr) {
			return nil, writeErr
		}
		return nil, NewTransportError(c.settings.URL, isTimeout(err), err)
	}
	defer resp.Body.Close()

	// the service may answer before reading the whole request, so only wait for the writer after the response
	body.CloseWithError(io.ErrClosedPipe)
	if writeErr := <-readErr; sessions.IsStorageError(writeErr) {
		return nil, writeErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.Warn("Classifier rejected request", "status", resp.StatusCode, "frames", len(images))
		return nil, NewServiceError(resp.StatusCode, string(data), "")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(c.settings.URL, isTimeout(err), fmt.Errorf("failed to read response: %w", err))
	}

	result, err := c.parseResult(resp.StatusCode, data)
	if err != nil {
		return nil, err
	}

	if len(result.Items) != len(images) {
		c.logger.Warn("Classifier returned a different number of items than submitted",
			"submitted", len(images), "returned", len(result.Items))
	}

	c.logger.Info("Classified frames", "frames", len(images), "items", len(result.Items), "duration", time.Since(start).String())
	return result, nil
}

func (c *httpClassifier) writeParts(form *multipart.Writer, images []frames.Frame) error {
	for _, image := range images {
		if err := c.writePart(form, image.Path); err != nil {
			return err
		}
	}
	return nil
}

func (c *httpClassifier) writePart(form *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return sessions.NewStorageError("open frame", path, err)
	}
	defer file.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fileDisposition(c.settings.FieldName, filepath.Base(path)))
	header.Set("Content-Type", contentTypeOf(path))

	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return nil
}

func (c *httpClassifier) parseResult(status int, data []byte) (*Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, NewServiceError(status, truncate(data), "response is not a JSON object")
	}

	raw, ok := fields[c.settings.ResultKey]
	if !ok {
		return nil, NewServiceError(status, truncate(data), fmt.Sprintf("response has no %q field", c.settings.ResultKey))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, NewServiceError(status, truncate(data), fmt.Sprintf("%q is not an array", c.settings.ResultKey))
	}
	if items == nil {
		items = []json.RawMessage{}
	}

	return &Result{
		Items: items,
		Raw:   json.RawMessage(data),
	}, nil
}

func contentTypeOf(path string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(data []byte) string {
	if len(data) > maxErrorBodyBytes {
		return string(data[:maxErrorBodyBytes])
	}
	return string(data)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileDisposition builds a form-data Content-Disposition value with quotes and backslashes escaped
func fileDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}
