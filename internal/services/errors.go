package services

import "errors"

// Sentinel errors mapped to HTTP statuses by the handlers
var (
	ErrInvalidMessage  = errors.New("unparseable message")
	ErrWrongState      = errors.New("order is not in a state that allows this operation")
	ErrAlreadyReported = errors.New("order already has a report")
)
