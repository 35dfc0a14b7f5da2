package source

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path"

	billy "github.com/go-git/go-billy/v5"
)

const tempPrefix = ".atlas-"

// WriteFileAtomic writes data to a temp file next to name and renames it
// into place. Readers see either the old or the new content.
func WriteFileAtomic(fs billy.Filesystem, name string, data []byte) error {
	tmp, err := writeTemp(fs, name, data)
	if err != nil {
		return err
	}
	if err := fs.Rename(tmp, name); err != nil {
		_ = fs.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", name, err)
	}
	return nil
}

func writeTemp(fs billy.Filesystem, name string, data []byte) (string, error) {
	dir := path.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := fs.TempFile(dir, tempPrefix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("close temp: %w", err)
	}
	return tmpName, nil
}

// Batch stages several files and publishes them together. Nothing is
// visible under the final names until Commit.
type Batch struct {
	fs     billy.Filesystem
	staged []staged
}

type staged struct {
	tmp, name string
}

func NewBatch(fs billy.Filesystem) *Batch {
	return &Batch{fs: fs}
}

// Stage writes data to a temp file destined for name.
func (b *Batch) Stage(name string, data []byte) error {
	tmp, err := writeTemp(b.fs, name, data)
	if err != nil {
		return err
	}
	b.staged = append(b.staged, staged{tmp: tmp, name: name})
	return nil
}

// Names lists the final paths staged so far.
func (b *Batch) Names() []string {
	out := make([]string, len(b.staged))
	for i, s := range b.staged {
		out[i] = s.name
	}
	return out
}

// Commit renames every staged file into place in staging order. On a
// rename failure the remaining temp files are removed and the error
// carries a *fs.PathError naming the destination.
func (b *Batch) Commit() error {
	for i, s := range b.staged {
		if err := b.fs.Rename(s.tmp, s.name); err != nil {
			b.staged = b.staged[i:]
			return errors.Join(&iofs.PathError{Op: "rename", Path: s.name, Err: err}, b.Abort())
		}
	}
	b.staged = nil
	return nil
}

// Abort removes every staged temp file.
func (b *Batch) Abort() error {
	var errs []error
	for _, s := range b.staged {
		if err := b.fs.Remove(s.tmp); err != nil {
			errs = append(errs, err)
		}
	}
	b.staged = nil
	return errors.Join(errs...)
}
