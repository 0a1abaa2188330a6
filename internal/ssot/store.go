// Package ssot implements the single-source-of-truth JSON store (C1):
// atomic read/modify/write of the harness's JSON files, with per-path
// advisory locking and schema normalization (§4.1).
package ssot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/gofrs/flock"
)

// Load reads and decodes the document at path. Returns ErrNotFound if the
// file is absent, ErrCorrupt if it does not parse.
func Load[T any](path string) (*T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, harnesserr.ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, harnesserr.ErrIOError)
	}

	var doc T
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %v", path, harnesserr.ErrCorrupt, err)
	}
	return &doc, nil
}

// Transform mutates a document in place. Returning an error aborts the
// mutate without writing (§4.1 "Atomicity contract").
type Transform[T any] func(doc *T) error

// Mutate loads the document at path under an exclusive per-path lock,
// applies transform, and atomically writes the result back (temp file +
// fsync + rename). If the file does not exist, transform receives a zero
// value document so callers can use Mutate to create new documents.
//
// The lock is held only for the duration of this call; do not run
// subprocesses inside transform — acquire, mutate, release, invoke
// externals, then call Mutate again to record results (§9 "SSOT locking").
func Mutate[T any](path string, transform Transform[T]) (*T, error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent dir for %s: %w", path, harnesserr.ErrIOError)
	}

	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", lockPath, harnesserr.ErrIOError)
	}
	defer fl.Unlock()

	var doc T
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(b, &doc); uerr != nil {
			return nil, fmt.Errorf("parsing %s: %w: %v", path, harnesserr.ErrCorrupt, uerr)
		}
	case os.IsNotExist(err):
		// zero-value doc; transform is responsible for initializing it.
	default:
		return nil, fmt.Errorf("reading %s: %w", path, harnesserr.ErrIOError)
	}

	if err := transform(&doc); err != nil {
		return nil, err
	}

	if err := writeAtomic(path, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// writeAtomic marshals doc, writes it to a sibling temp file, fsyncs, and
// renames over path — so readers always see either the pre- or post-image,
// never a partial write (§4.1 "Atomicity contract").
func writeAtomic(path string, doc any) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, harnesserr.ErrIOError)
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, harnesserr.ErrIOError)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, harnesserr.ErrIOError)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsyncing %s: %w", tmpPath, harnesserr.ErrIOError)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, harnesserr.ErrIOError)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, harnesserr.ErrIOError)
	}
	return nil
}

// WriteNew atomically creates path with the given document. It fails if the
// parent directory cannot be created; it does not check for prior existence
// (callers that need create-if-absent semantics should use Mutate).
func WriteNew(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent dir for %s: %w", path, harnesserr.ErrIOError)
	}
	return writeAtomic(path, doc)
}
