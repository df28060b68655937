package experiment

import (
	"errors"
	"fmt"
)

// Error taxonomy of the bucketing subsystem. Callers match with errors.Is.
var (
	// ErrConfigFetch means the backend was unreachable, timed out, or refused the call.
	ErrConfigFetch = errors.New("config fetch failure")
	// ErrConfigParse means the backend answered with a malformed payload.
	ErrConfigParse = errors.New("config parse failure")
	// ErrConfigMissing means the backend has no rule for the path.
	ErrConfigMissing = errors.New("config missing")
	// ErrCookieParse means the identity cookie is malformed. Never fatal.
	ErrCookieParse = errors.New("cookie parse failure")
)

// Failure is the typed error returned by configuration providers.
type Failure struct {
	Kind   error  // one of the Err* sentinels above
	Source string // provider name, e.g. "s3", "dynamodb"
	Path   string
	Err    error // underlying cause, may be nil
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s (path %q)", f.Source, f.Kind, f.Path)
	}
	return fmt.Sprintf("%s: %s (path %q): %v", f.Source, f.Kind, f.Path, f.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

// FetchFailure builds an ErrConfigFetch failure.
func FetchFailure(source, path string, err error) error {
	return &Failure{Kind: ErrConfigFetch, Source: source, Path: path, Err: err}
}

// ParseFailure builds an ErrConfigParse failure.
func ParseFailure(source, path string, err error) error {
	return &Failure{Kind: ErrConfigParse, Source: source, Path: path, Err: err}
}

// MissingFailure builds an ErrConfigMissing failure.
func MissingFailure(source, path string) error {
	return &Failure{Kind: ErrConfigMissing, Source: source, Path: path}
}

// FailureKind returns the short label of a provider error for metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfigMissing):
		return "missing"
	case errors.Is(err, ErrConfigParse):
		return "parse"
	case errors.Is(err, ErrConfigFetch):
		return "fetch"
	default:
		return "unknown"
	}
}
