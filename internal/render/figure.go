// Package render turns compiled views into self-contained documents.
package render

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/paulmach/orb/geojson"

	"github.com/agentic-research/atlas/internal/layer"
	"github.com/agentic-research/atlas/internal/source"
	"github.com/agentic-research/atlas/internal/visibility"
)

// Figure is a view ready to render: ordered layers, their selector menus,
// figure-level layout and the geometry collections choropleth layers
// refer to by name.
type Figure struct {
	Title      string
	Layers     []layer.Layer
	Menus      []visibility.Menu
	Layout     map[string]any
	Geometries map[string]*geojson.FeatureCollection
}

// Renderer encodes a figure as a document.
type Renderer interface {
	Render(fig *Figure) ([]byte, error)
}

// ErrWrite matches every WriteError.
var ErrWrite = errors.New("artifact write failed")

// WriteError is an artifact that could not be written to its destination.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Stage adds a rendered document to batch, reporting failures as
// WriteError.
func Stage(batch *source.Batch, path string, data []byte) error {
	if err := batch.Stage(path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Commit publishes every staged document. On failure nothing further is
// published and the error names the first path that could not be written.
func Commit(batch *source.Batch) error {
	if err := batch.Commit(); err != nil {
		path := ""
		var pe *fs.PathError
		if errors.As(err, &pe) {
			path = pe.Path
		}
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
