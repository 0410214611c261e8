package domain

import "errors"

var (
	ErrDecode           = errors.New("malformed payload")
	ErrRegistryStopped  = errors.New("connection registry stopped")
	ErrClientClosed     = errors.New("client connection closed")
	ErrNamespaceUnknown = errors.New("namespace not tracked")
)
