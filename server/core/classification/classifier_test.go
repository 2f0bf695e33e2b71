package classification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeti47/framesight/server/core/frames"
	"github.com/yeti47/framesight/server/core/sessions"
)

type receivedPart struct {
	Field       string
	FileName    string
	ContentType string
	Content     string
}

// echoServer answers every request with one item per received part, echoing the part content
func echoServer(t *testing.T, received chan<- []receivedPart) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reader, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var parts []receivedPart
		items := []string{}
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			content, _ := io.ReadAll(part)
			parts = append(parts, receivedPart{
				Field:       part.FormName(),
				FileName:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Content:     string(content),
			})
			items = append(items, string(content))
		}

		if received != nil {
			received <- parts
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"image_base64": items})
	}))
	t.Cleanup(server.Close)
	return server
}

func writeFrames(t *testing.T, count int) []frames.Frame {
	t.Helper()
	dir := t.TempDir()

	result := make([]frames.Frame, count)
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, frames.FrameName(i+1))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("frame %d", i+1)), 0644))
		result[i] = frames.Frame{Index: i + 1, Path: path}
	}
	return result
}

func newClassifier(url string) Classifier {
	settings := DefaultSettings()
	settings.URL = url
	settings.Timeout = 5 * time.Second
	return NewHTTPClassifier(nil, settings)
}

func TestClassify_SendsFramesInOrder(t *testing.T) {
	received := make(chan []receivedPart, 1)
	server := echoServer(t, received)
	input := writeFrames(t, 5)

	result, err := newClassifier(server.URL).Classify(context.Background(), input)
	require.NoError(t, err)

	parts := <-received
	require.Len(t, parts, 5)
	for i, part := range parts {
		assert.Equal(t, "files", part.Field)
		assert.Equal(t, frames.FrameName(i+1), part.FileName)
		assert.Equal(t, "image/png", part.ContentType)
		assert.Equal(t, fmt.Sprintf("frame %d", i+1), part.Content)
	}

	require.Len(t, result.Items, 5)
	for i, item := range result.Items {
		var value string
		require.NoError(t, json.Unmarshal(item, &value))
		assert.Equal(t, fmt.Sprintf("frame %d", i+1), value)
	}
	assert.False(t, result.NoContent)
	assert.Contains(t, string(result.Raw), "image_base64")
}

func TestClassify_CustomFieldAndKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"predictions": [%d]}`, len(r.MultipartForm.File["images"]))
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(nil, Settings{URL: server.URL, FieldName: "images", ResultKey: "predictions", Timeout: time.Second})
	result, err := classifier.Classify(context.Background(), writeFrames(t, 3))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.JSONEq(t, "3", string(result.Items[0]))
}

func TestClassify_NoFrames(t *testing.T) {
	received := make(chan []receivedPart, 1)
	server := echoServer(t, received)

	result, err := newClassifier(server.URL).Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, <-received)
	assert.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
}

func TestClassify_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantReason string
	}{
		{"server error", http.StatusInternalServerError, "model crashed", 500, ""},
		{"validation error", http.StatusUnprocessableEntity, `{"detail":"files missing"}`, 422, ""},
		{"not json", http.StatusOK, "<html>proxy</html>", 200, "response is not a JSON object"},
		{"missing key", http.StatusOK, `{"labels": []}`, 200, `response has no "image_base64" field`},
		{"key not an array", http.StatusOK, `{"image_base64": "x"}`, 200, `"image_base64" is not an array`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newClassifier(server.URL).Classify(context.Background(), writeFrames(t, 2))
			require.Error(t, err)

			var serviceErr *ServiceError
			require.ErrorAs(t, err, &serviceErr)
			assert.Equal(t, tt.wantStatus, serviceErr.StatusCode)
			assert.Equal(t, tt.body, serviceErr.Body)
			assert.Equal(t, tt.wantReason, serviceErr.Reason)
			assert.False(t, IsTransportError(err))
		})
	}
}

func TestClassify_UnreachableService(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newClassifier(url).Classify(context.Background(), writeFrames(t, 1))
	require.Error(t, err)
	assert.True(t, IsTransportError(err), "expected TransportError, got %v", err)
}

func TestClassify_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	settings := DefaultSettings()
	settings.URL = server.URL
	settings.Timeout = 50 * time.Millisecond

	_, err := NewHTTPClassifier(nil, settings).Classify(context.Background(), writeFrames(t, 1))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Timeout)
}

func TestClassify_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := newClassifier(server.URL).Classify(ctx, writeFrames(t, 1))
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsTransportError(err))
}

func TestClassify_MissingFrameFile(t *testing.T) {
	server := echoServer(t, nil)
	input := writeFrames(t, 2)
	require.NoError(t, os.Remove(input[1].Path))

	_, err := newClassifier(server.URL).Classify(context.Background(), input)
	require.Error(t, err)
	assert.True(t, sessions.IsStorageError(err), "expected StorageError, got %v", err)
}

func TestResult_Payload(t *testing.T) {
	var nilResult *Result
	assert.Equal(t, []json.RawMessage{}, nilResult.Payload())
	assert.Equal(t, []json.RawMessage{}, (&Result{NoContent: true}).Payload())

	items := []json.RawMessage{json.RawMessage(`"a"`)}
	assert.Equal(t, items, (&Result{Items: items}).Payload())
}
