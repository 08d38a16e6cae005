package ml

import "errors"

var (
	// ErrConnectionFailed indicates the model service could not be reached
	ErrConnectionFailed = errors.New("failed to connect to model service")

	// ErrModelServiceUnavailable indicates the model service reported unhealthy
	ErrModelServiceUnavailable = errors.New("model service unavailable")

	// ErrEmptyBatch indicates a prediction request carried no rows
	ErrEmptyBatch = errors.New("prediction batch is empty")
)
