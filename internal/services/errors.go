package services

import "errors"

// Service errors
var (
	// ErrRefresherRunning is returned by Start on a refresher already scheduled.
	ErrRefresherRunning = errors.New("refresher already running")
)
