package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotHost         = errors.New("not session host")
	ErrInvalidRequest  = errors.New("invalid request")
)
