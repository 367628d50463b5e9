// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package blob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/scriptorium/internal/models"
)

var (
	// ErrArtifactNotFound is returned when no blob exists for the ref.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidRef is returned for refs that escape the blob directory or
	// don't follow the artifact naming scheme.
	ErrInvalidRef = errors.New("invalid artifact ref")
)

// Store persists raw artifacts (transcript text/JSON, summary markdown/JSON)
// on the local filesystem. Writes are atomic: content lands in a temp file
// that is fsynced and renamed into place, so readers never observe partial
// artifacts and re-writes after a crash are safe.
type Store struct {
	dir string
}

// Open prepares the blob directory and returns the store.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("blob directory not configured")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Ref builds the canonical artifact filename:
// <video_id>_<YYYY-MM-DD>_<kind>.<ext>, dated by the video's publish date.
func Ref(videoID string, publishedAt time.Time, kind models.ArtifactKind) string {
	return fmt.Sprintf("%s_%s_%s.%s", videoID, publishedAt.UTC().Format("2006-01-02"), kind, kind.Ext())
}

// Put writes content under the canonical ref and returns it. Existing blobs
// are replaced atomically; writing identical content is a no-op ref-wise.
func (s *Store) Put(videoID string, publishedAt time.Time, kind models.ArtifactKind, content []byte) (string, error) {
	ref := Ref(videoID, publishedAt, kind)
	path, err := s.resolve(ref)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, "."+ref+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact %s: %w", ref, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync artifact %s: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact %s: %w", ref, err)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return "", fmt.Errorf("chmod artifact %s: %w", ref, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("commit artifact %s: %w", ref, err)
	}
	return ref, nil
}

// Get reads the blob for ref.
func (s *Store) Get(ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", ref, err)
	}
	return data, nil
}

// Exists reports whether a blob exists for ref.
func (s *Store) Exists(ref string) (bool, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("stat artifact %s: %w", ref, err)
	}
	return true, nil
}

// Delete removes the blob for ref. Missing blobs are not an error so replay
// cleanup stays idempotent.
func (s *Store) Delete(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete artifact %s: %w", ref, err)
	}
	return nil
}

// ListVideo returns all artifact refs stored for a video.
func (s *Store) ListVideo(videoID string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	prefix := videoID + "_"
	var refs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			refs = append(refs, name)
		}
	}
	return refs, nil
}

// resolve maps a ref to an absolute path, rejecting anything that would
// escape the blob directory.
func (s *Store) resolve(ref string) (string, error) {
	if ref == "" || strings.ContainsAny(ref, "/\\") || strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(s.dir, ref), nil
}
