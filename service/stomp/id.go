package stomp

import "github.com/google/uuid"

func newMessageId() string {
	return uuid.NewString()
}

func newSessionId() string {
	return uuid.NewString()
}
