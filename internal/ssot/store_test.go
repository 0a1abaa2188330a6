package ssot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/harnesserr"
)

type fixtureDoc struct {
	Counter int    `json:"counter"`
	Note    string `json:"note"`
}

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Load[fixtureDoc](filepath.Join(dir, "absent.json"))
	assert.ErrorIs(t, err, harnesserr.ErrNotFound)
}

func TestLoadCorruptFileReturnsCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	assert.NoError(t, WriteNew(path, fixtureDoc{Counter: 1}))

	// Overwrite with invalid JSON directly.
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load[fixtureDoc](path)
	assert.ErrorIs(t, err, harnesserr.ErrCorrupt)
}

func TestMutateCreatesDocumentWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feats", "doc.json")

	doc, err := Mutate(path, func(d *fixtureDoc) error {
		d.Counter = 1
		d.Note = "created"
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, doc.Counter)

	loaded, err := Load[fixtureDoc](path)
	assert.NoError(t, err)
	assert.Equal(t, "created", loaded.Note)
}

func TestMutateTransformErrorAbortsWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	assert.NoError(t, WriteNew(path, fixtureDoc{Counter: 5}))

	_, err := Mutate(path, func(d *fixtureDoc) error {
		d.Counter = 99
		return assert.AnError
	})
	assert.Error(t, err)

	loaded, err := Load[fixtureDoc](path)
	assert.NoError(t, err)
	assert.Equal(t, 5, loaded.Counter, "aborted transform must not persist")
}

func TestMutateSerializesConcurrentIncrements(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	assert.NoError(t, WriteNew(path, fixtureDoc{Counter: 0}))

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := Mutate(path, func(d *fixtureDoc) error {
				d.Counter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := Load[fixtureDoc](path)
	assert.NoError(t, err)
	assert.Equal(t, n, loaded.Counter, "every increment must be observed exactly once")
}
