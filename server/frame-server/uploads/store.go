package uploads

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/framesight/server/core/ccc/logging"
	"github.com/yeti47/framesight/server/frame-server/utils"
)

const (
	KindVideo = "video"
	KindImage = "image"
	KindOther = "other"
)

// sniffLen matches what http.DetectContentType looks at
const sniffLen = 512

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StoredFile is an upload persisted to disk
type StoredFile struct {
	Path         string
	OriginalName string
	ContentType  string
	Kind         string
	Size         int64
}

// Store persists uploads into per-kind folders below its root:
// videos/ and images/ by MIME type, anything else directly into the root
type Store struct {
	logger  logging.Logger
	rootDir string
	now     func() time.Time
	newID   func() string
}

func NewStore(logger logging.Logger, rootDir string) *Store {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &Store{
		logger:  logger,
		rootDir: rootDir,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SaveFormFile stores a multipart upload
func (s *Store) SaveFormFile(fileHeader *multipart.FileHeader) (*StoredFile, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	return s.Save(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
}

// SaveLocalFile copies a file from the local filesystem into the store, leaving the original untouched
func (s *Store) SaveLocalFile(path string) (*StoredFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return s.Save(filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), file)
}

// Save writes r to a new uniquely named file. The folder is chosen from the declared
// content type, falling back to the file's leading bytes.
func (s *Store) Save(originalName, contentType string, r io.Reader) (*StoredFile, error) {
	reader := bufio.NewReaderSize(r, sniffLen)
	head, err := reader.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	kind := classify(contentType, head)
	dir := s.dirFor(kind)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, s.fileName(originalName))
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	size, err := io.Copy(out, reader)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload file: %w", err)
	}

	s.logger.Debug("Stored upload", "path", path, "kind", kind, "size", size, "original_name", originalName)

	return &StoredFile{
		Path:         path,
		OriginalName: originalName,
		ContentType:  contentType,
		Kind:         kind,
		Size:         size,
	}, nil
}

// Remove deletes stored files, ignoring those already gone
func (s *Store) Remove(files []*StoredFile) {
	for _, file := range files {
		if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove upload", "path", file.Path, "error", err)
		}
	}
}

func (s *Store) dirFor(kind string) string {
	switch kind {
	case KindVideo:
		return filepath.Join(s.rootDir, "videos")
	case KindImage:
		return filepath.Join(s.rootDir, "images")
	default:
		return s.rootDir
	}
}

// fileName builds <unix-millis>-<uuid>-<basename><ext> from the client supplied name
func (s *Store) fileName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	stem = strings.Trim(unsafeNameChars.ReplaceAllString(stem, "_"), "._")
	ext = unsafeNameChars.ReplaceAllString(ext, "")
	if ext == "." {
		ext = ""
	}
	if stem == "" {
		stem = "upload"
	}

	return fmt.Sprintf("%d-%s-%s%s", s.now().UnixMilli(), s.newID(), stem, strings.ToLower(ext))
}

func classify(contentType string, head []byte) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.HasPrefix(mediaType, "video/"):
			return KindVideo
		case strings.HasPrefix(mediaType, "image/"):
			return KindImage
		}
	}

	if _, ok := utils.DetectVideoFormat(head); ok {
		return KindVideo
	}
	if utils.IsImage(head) {
		return KindImage
	}
	return KindOther
}
