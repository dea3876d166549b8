package stomp

import "errors"

var (
	ErrProtocol = errors.New("protocol error")
	ErrEncoding = errors.New("frame encoding error")
	ErrRouting  = errors.New("unroutable destination")

	ErrNotConnected = errors.New("client not connected")
	ErrAuthFailed   = errors.New("authentication failed")

	ErrStoreClosed      = errors.New("store is closed")
	ErrStoreTypeUnknown = errors.New("store type unknown")

	ErrServerClosed = errors.New("server is closed")
)
