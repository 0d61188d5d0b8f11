package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidRef is returned for references that escape the storage root or name no bucket.
var ErrInvalidRef = errors.New("invalid document reference")

// ErrUnsupportedType is returned when sniffed content is outside the allow-list.
var ErrUnsupportedType = errors.New("unsupported document type")

// LocalStorage persists documents on disk as <baseDir>/<bucket>/<file>.
type LocalStorage struct {
	baseDir string
	allowed []string
	now     func() time.Time
}

// NewLocalStorage ensures the base directory exists and returns a handle. An empty allow-list
// accepts any content type.
func NewLocalStorage(baseDir string, allowed []string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./documents"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, allowed: allowed, now: time.Now}, nil
}

// Sniff detects the content type of data and returns it with its file extension.
func Sniff(data []byte) (string, string) {
	mtype := mimetype.Detect(data)
	return mtype.String(), mtype.Extension()
}

// Store sniffs data, writes it to bucket as <owner>_<unix>_<rand><ext> and returns the
// reference "<bucket>/<file>".
func (s *LocalStorage) Store(bucket, owner string, data []byte) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) {
		return "", ErrInvalidRef
	}
	contentType, ext := Sniff(data)
	if !s.accepts(contentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%d_%s%s", sanitize(owner), s.now().Unix(), suffix, ext)
	ref := bucket + "/" + name

	path, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare bucket %s: %w", bucket, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return ref, nil
}

// Open returns a read-only handle for ref and its sniffed content type.
func (s *LocalStorage) Open(ref string) (io.ReadSeekCloser, string, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("open document: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open document: %w", err)
	}
	return file, mtype.String(), nil
}

// Delete removes a stored document if present.
func (s *LocalStorage) Delete(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *LocalStorage) accepts(contentType string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	return mimetype.EqualsAny(contentType, s.allowed...)
}

func (s *LocalStorage) resolve(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") || !strings.ContainsRune(clean, filepath.Separator) {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.baseDir, clean), nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate document name: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func sanitize(owner string) string {
	owner = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return -1
	}, owner)
	if owner == "" {
		return "anonymous"
	}
	return owner
}
