package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
)

// Kind classifies a dataset by how it is read.
type Kind string

const (
	KindTabular        Kind = "tabular"
	KindGeometry       Kind = "geometry"
	KindCachedGeometry Kind = "cached-geometry"
	KindDirectory      Kind = "directory"
)

// Dataset is a logical input or derived artifact. Identity is Name.
type Dataset struct {
	Name string
	Path string // relative to the registry filesystem root
	Kind Kind
}

// Status is a point-in-time view of a dataset on disk.
type Status struct {
	Dataset
	Exists  bool
	ModTime time.Time
}

// Entry is a file inside a directory dataset.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Registry resolves logical dataset names to files on a billy filesystem.
type Registry struct {
	fs       billy.Filesystem
	datasets map[string]Dataset
	order    []string
	status   map[string]Status
}

func NewRegistry(fs billy.Filesystem, datasets ...Dataset) *Registry {
	r := &Registry{
		fs:       fs,
		datasets: make(map[string]Dataset, len(datasets)),
		status:   make(map[string]Status, len(datasets)),
	}
	for _, ds := range datasets {
		if _, dup := r.datasets[ds.Name]; !dup {
			r.order = append(r.order, ds.Name)
		}
		ds.Path = filepath.ToSlash(ds.Path)
		r.datasets[ds.Name] = ds
	}
	return r
}

// Filesystem returns the filesystem datasets are resolved against.
func (r *Registry) Filesystem() billy.Filesystem { return r.fs }

// Datasets returns all registered datasets in registration order.
func (r *Registry) Datasets() []Dataset {
	out := make([]Dataset, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.datasets[name])
	}
	return out
}

// Resolve returns the dataset registered under name.
func (r *Registry) Resolve(name string) (Dataset, error) {
	ds, ok := r.datasets[name]
	if !ok {
		return Dataset{Name: name}, &UnavailableError{Dataset: name, Err: ErrUnknownDataset}
	}
	return ds, nil
}

// LocalPath returns the operating-system path of a dataset. Only meaningful
// for filesystems backed by the OS, which is what drivers such as SQLite need.
func (r *Registry) LocalPath(name string) (string, error) {
	ds, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.fs.Root(), filepath.FromSlash(ds.Path)), nil
}

// ModTime reports the last-modified time of a dataset. ok is false when the
// file does not exist; other stat failures are returned as errors.
func (r *Registry) ModTime(name string) (t time.Time, ok bool, err error) {
	ds, err := r.Resolve(name)
	if err != nil {
		return time.Time{}, false, err
	}
	info, err := r.fs.Stat(ds.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, unavailable(ds, err)
	}
	return info.ModTime(), true, nil
}

// Refresh re-stats every dataset and returns the snapshot in registration
// order. It is the only place dataset state is updated.
func (r *Registry) Refresh() ([]Status, error) {
	out := make([]Status, 0, len(r.order))
	for _, ds := range r.Datasets() {
		mod, ok, err := r.ModTime(ds.Name)
		if err != nil {
			return nil, err
		}
		st := Status{Dataset: ds, Exists: ok, ModTime: mod}
		r.status[ds.Name] = st
		out = append(out, st)
	}
	return out, nil
}

// Status returns the snapshot taken by the last Refresh.
func (r *Registry) Status(name string) (Status, bool) {
	st, ok := r.status[name]
	return st, ok
}

// Require fails with an UnavailableError for the first named dataset that
// does not exist or has the wrong shape (file vs directory).
func (r *Registry) Require(names ...string) error {
	for _, name := range names {
		ds, err := r.Resolve(name)
		if err != nil {
			return err
		}
		info, err := r.fs.Stat(ds.Path)
		if err != nil {
			return unavailable(ds, err)
		}
		if wantDir := ds.Kind == KindDirectory; info.IsDir() != wantDir {
			if wantDir {
				return unavailable(ds, errors.New("not a directory"))
			}
			return unavailable(ds, errors.New("is a directory"))
		}
	}
	return nil
}

// Open opens a file dataset for reading.
func (r *Registry) Open(name string) (io.ReadCloser, Dataset, error) {
	ds, err := r.Resolve(name)
	if err != nil {
		return nil, ds, err
	}
	f, err := r.fs.Open(ds.Path)
	if err != nil {
		return nil, ds, unavailable(ds, err)
	}
	return f, ds, nil
}

// ReadFile returns the full contents of a file dataset.
func (r *Registry) ReadFile(name string) ([]byte, error) {
	f, ds, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // read-only
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, unavailable(ds, err)
	}
	return data, nil
}

// ReadDir lists the files of a directory dataset whose names end in ext,
// sorted by name. Subdirectories and dotfiles are skipped.
func (r *Registry) ReadDir(name, ext string) ([]Entry, error) {
	ds, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	infos, err := r.fs.ReadDir(ds.Path)
	if err != nil {
		return nil, unavailable(ds, err)
	}
	var out []Entry
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		if ext != "" && !strings.HasSuffix(info.Name(), ext) {
			continue
		}
		out = append(out, Entry{
			Name:    info.Name(),
			Path:    path.Join(ds.Path, info.Name()),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadEntry reads a file that belongs to a directory dataset.
func (r *Registry) ReadEntry(dir string, e Entry) ([]byte, error) {
	ds, err := r.Resolve(dir)
	if err != nil {
		return nil, err
	}
	f, err := r.fs.Open(e.Path)
	if err != nil {
		return nil, unavailable(ds, fmt.Errorf("%s: %w", e.Name, err))
	}
	defer func() { _ = f.Close() }() // read-only
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, unavailable(ds, fmt.Errorf("%s: %w", e.Name, err))
	}
	return data, nil
}
