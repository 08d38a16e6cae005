package models

import "errors"

// Custom errors
var (
	ErrNoData                = errors.New("no race data found")
	ErrArtifactsMissing      = errors.New("artifacts not found: train a model and produce artifacts first")
	ErrEncoderMissingUnknown = errors.New("fitted encoder has no reserved unknown class")
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateKey          = errors.New("duplicate key violation")
)
