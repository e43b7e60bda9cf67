package services

import "github.com/pkg/errors"

// Stage-level fatal conditions
var (
	ErrNoRawFiles        = errors.New("no raw files found")
	ErrMergedFileMissing = errors.New("merged file not found")
	ErrEmptyFrame        = errors.New("empty data")
	ErrEmptySplit        = errors.New("no usable rows for the requested months")
)
