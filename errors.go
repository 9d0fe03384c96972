package geopolygonize

import (
	"errors"
	"fmt"

	"github.com/rainflame/geopolygonize/segmenter"
	"github.com/rainflame/geopolygonize/tiler"
)

// The error taxonomy of a run. Configuration and input errors surface
// before any tile is scheduled; per-tile worker faults are logged and
// isolated by the pipeline; the union step's failure is fatal.

// ConfigError reports invalid or missing user inputs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return "configuration error: " + e.Reason
}

// InputError reports a raster that cannot be opened or decoded.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error: %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a configuration or input problem,
// the class of failures that exit with a distinct status before the
// pipeline runs.
func IsConfigError(err error) bool {
	var ce *ConfigError
	var ie *InputError
	return errors.As(err, &ce) || errors.As(err, &ie)
}

// IsCancelled reports whether err is a cooperative shutdown.
func IsCancelled(err error) bool {
	return errors.Is(err, tiler.ErrCleanExit)
}

// IsGeometryError reports whether err is an unrepairable polygon.
func IsGeometryError(err error) bool {
	var ge *segmenter.GeometryError
	return errors.As(err, &ge)
}
