package storage

import "errors"

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidData      = errors.New("invalid data")
	ErrStorageInit      = errors.New("storage initialization failed")
)
