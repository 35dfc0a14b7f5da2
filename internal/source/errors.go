package source

import (
	"errors"
	"fmt"
)

// ErrUnavailable matches every UnavailableError.
var ErrUnavailable = errors.New("source unavailable")

// ErrUnknownDataset is wrapped when a name was never registered.
var ErrUnknownDataset = errors.New("dataset not registered")

// UnavailableError reports a required dataset that is missing, unreadable
// or malformed. It is always fatal for a build.
type UnavailableError struct {
	Dataset string
	Path    string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("dataset %s unavailable: %v", e.Dataset, e.Err)
	}
	return fmt.Sprintf("dataset %s (%s) unavailable: %v", e.Dataset, e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(ds Dataset, err error) error {
	return &UnavailableError{Dataset: ds.Name, Path: ds.Path, Err: err}
}
