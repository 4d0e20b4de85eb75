package storage

import (
	"errors"
	"fmt"
	"io"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/models"
)

// ReadAll returns the full text content of h.
func ReadAll(p Provider, h models.Handle) (string, error) {
	rc, err := p.OpenRead(h)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", h, err)
	}
	return string(data), nil
}

// WriteAll replaces the content of h. Errors are tagged apperr.ErrStorageWrite.
func WriteAll(p Provider, h models.Handle, content string) error {
	wc, err := p.OpenWrite(h)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStorageWrite, err)
	}
	if _, err := io.WriteString(wc, content); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%w: %w", apperr.ErrStorageWrite, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStorageWrite, err)
	}
	return nil
}

// EnsureDir walks rel from root, creating every missing level. Errors are
// tagged apperr.ErrDirectoryResolution.
func EnsureDir(p Provider, root models.Handle, rel []string) (models.Handle, error) {
	h := root
	for _, seg := range rel {
		next, err := p.ResolvePath(h, []string{seg})
		if errors.Is(err, apperr.ErrNotFound) {
			next, err = p.CreateDirectory(h, seg)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", apperr.ErrDirectoryResolution, seg, err)
		}
		h = next
	}
	return h, nil
}

// EnsureFile returns the file name inside dir, creating it with seed as its
// content when absent. Errors are tagged apperr.ErrStorageWrite.
func EnsureFile(p Provider, dir models.Handle, name, seed string) (models.Handle, error) {
	h, err := p.FindFile(dir, name)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("%w: %w", apperr.ErrStorageWrite, err)
	}
	return CreateWithContent(p, dir, name, seed)
}

// CreateWithContent creates name inside dir and writes content to it.
func CreateWithContent(p Provider, dir models.Handle, name, content string) (models.Handle, error) {
	h, err := p.CreateFile(dir, name, MimeMarkdown)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrStorageWrite, err)
	}
	if err := WriteAll(p, h, content); err != nil {
		return "", err
	}
	return h, nil
}
