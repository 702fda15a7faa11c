// Package apperr defines the fatal error kinds surfaced by a geocoding run.
package apperr

import (
	"errors"
	"fmt"
)

// MissingInputError reports an input file or a selected column that does not exist.
type MissingInputError struct {
	What string // "file", "column" or "parameter"
	Name string
	Err  error
}

func (e *MissingInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missing %s %q: %v", e.What, e.Name, e.Err)
	}
	return fmt.Sprintf("missing %s %q", e.What, e.Name)
}

func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// MissingColumn returns a MissingInputError for an unknown column name.
func MissingColumn(name string) *MissingInputError {
	return &MissingInputError{What: "column", Name: name}
}

// DownloadError wraps a failure while fetching or unpacking the registry archive.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ParseError reports a registry line that does not match the expected layout.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IOError wraps a failure while writing an output file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsMissingInput returns true if err (or any error in its chain) is a MissingInputError.
func IsMissingInput(err error) bool {
	var target *MissingInputError
	return errors.As(err, &target)
}

// IsDownload returns true if err (or any error in its chain) is a DownloadError.
func IsDownload(err error) bool {
	var target *DownloadError
	return errors.As(err, &target)
}

// IsParse returns true if err (or any error in its chain) is a ParseError.
func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsIO returns true if err (or any error in its chain) is an IOError.
func IsIO(err error) bool {
	var target *IOError
	return errors.As(err, &target)
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
