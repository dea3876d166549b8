package api

// Default listen addresses. 61613 is the customary STOMP port.
const (
	DefaultStompListen     = ":61613"
	DefaultWebSocketListen = ":61614"
	DefaultManageListen    = ":61680"
)

// Destination namespaces. Everything else is rejected by the broker.
const (
	QueuePrefix = "/queue/"
	TopicPrefix = "/topic/"
)

const (
	WebSocketSubprotocol = "v10.stomp"
	WebSocketPath        = "/stomp"
)
