package model

import "errors"

// Error kinds shared across the pipeline. Concrete errors wrap one of these so
// callers can classify failures with errors.Is.
var (
	ErrNoContent          = errors.New("no content to process")
	ErrUnknownFeature     = errors.New("unknown feature type")
	ErrCounterAllocation  = errors.New("counter allocation failed")
	ErrUpstreamGeneration = errors.New("generation failed")
	ErrUpstreamFormat     = errors.New("invalid generation output")
	ErrPersistence        = errors.New("failed to save reviewer")
	ErrConversion         = errors.New("failed to extract text")
	ErrNotFound           = errors.New("not found")
)
