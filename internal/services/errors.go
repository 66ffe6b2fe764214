package services

import "errors"

// Resample service errors
var (
	ErrNoInputs         = errors.New("no input files")
	ErrRowLimitExceeded = errors.New("row limit exceeded")
	ErrSchemaMismatch   = errors.New("input schemas differ")
)
