package repository

import "errors"

// Sentinel kinds for run store errors.
var (
	ErrNotFound = errors.New("sweep run not found")
	ErrExists   = errors.New("sweep run already exists")
	ErrFinished = errors.New("sweep run already finished")
)
