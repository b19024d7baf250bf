package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FS stores blobs on the local filesystem and serves them under a public
// base URL.
type FS struct {
	rootPath string
	baseURL  string
}

var _ Store = (*FS)(nil)

func NewFS(rootPath, baseURL string) (*FS, error) {
	// filepath.Clean prevents traversal like "media/../"
	p := filepath.Clean(rootPath)
	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage directory %s: %w", p, err)
	}
	return &FS{rootPath: p, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FS) Save(ctx context.Context, path string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := s.safeRelPath(path)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.rootPath, rel)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create subdirectories: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, data); err != nil {
		os.Remove(fullPath) // best effort cleanup of the partial file
		return "", fmt.Errorf("failed to copy file data: %w", err)
	}
	// Escape per segment so the separators survive in the public URL.
	public := url.URL{Path: filepath.ToSlash(rel)}
	return s.baseURL + "/" + public.EscapedPath(), nil
}

func (s *FS) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := s.safeRelPath(path)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.rootPath, rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *FS) safeRelPath(path string) (string, error) {
	rel := filepath.Clean("/" + path)[1:] // strip any leading ../ tricks
	if rel == "" || rel == "." {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	return rel, nil
}
