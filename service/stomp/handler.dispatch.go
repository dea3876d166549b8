package stomp

import (
	"fmt"
	"strings"

	"github.com/woutdenolf/coilmq/api"
)

// dispatchFrame routes one parsed frame. The returned flag is false when the
// connection must close: protocol violation, failed CONNECT or DISCONNECT.
func (h *connHandler) dispatchFrame(frame *Frame) bool {
	if frame.IsHeartbeat() {
		return true
	}
	h.server.metrics.IncFramesRead()

	if !h.connected && frame.Command != CmdConnect {
		h.replyError("protocol error", fmt.Errorf("%w: %s frame received before CONNECT", ErrNotConnected, frame.Command))
		return false
	}

	switch frame.Command {
	case CmdConnect:
		return h.handleConnect(frame)
	case CmdSend:
		return h.handleSend(frame)
	case CmdSubscribe:
		return h.handleSubscribe(frame)
	case CmdUnsubscribe:
		return h.handleUnsubscribe(frame)
	case CmdAck:
		return h.handleAck(frame)
	case CmdDisconnect:
		return h.handleDisconnect(frame)
	default:
		h.replyError("protocol error", fmt.Errorf("%w: unknown command: %s", ErrProtocol, frame.Command))
		return false
	}
}

// A repeated CONNECT re-authenticates and answers with the same session.
func (h *connHandler) handleConnect(frame *Frame) bool {
	// validation
	login, _ := frame.Headers.Get(HeaderLogin)
	passcode, _ := frame.Headers.Get(HeaderPasscode)
	if !h.server.auth.Authenticate(login, passcode) {
		_handlerLogger.Warnf("authentication of login [%s] failed on session [%s]", login, h.session)
		h.replyError("authentication failed", ErrAuthFailed)
		return false
	}

	// process
	h.connected = true

	// prepare output
	h.SendFrame(NewFrame(CmdConnected, nil, Header{HeaderSession, h.session}))
	return true
}

func (h *connHandler) handleSend(frame *Frame) bool {
	// validation
	destination, ok := frame.Headers.Get(HeaderDestination)
	if !ok {
		h.replyError("protocol error", fmt.Errorf("%w: SEND requires a destination header", ErrProtocol))
		return false
	}

	// process
	var err error
	switch {
	case strings.HasPrefix(destination, api.QueuePrefix):
		err = h.server.queues.Send(destination, frame)
	case strings.HasPrefix(destination, api.TopicPrefix):
		err = h.server.topics.Send(destination, frame)
	default:
		h.replyError("routing error", fmt.Errorf("%w: %s", ErrRouting, destination))
		return true
	}
	if err != nil {
		_handlerLogger.Errorf("SEND to [%s] failed on session [%s]: %s", destination, h.session, err)
		h.replyError("internal error", err)
		return true
	}

	// prepare output
	h.maybeReceipt(frame)
	return true
}

func (h *connHandler) handleSubscribe(frame *Frame) bool {
	// validation
	destination, ok := frame.Headers.Get(HeaderDestination)
	if !ok {
		h.replyError("protocol error", fmt.Errorf("%w: SUBSCRIBE requires a destination header", ErrProtocol))
		return false
	}
	// any ack value other than client means auto
	ackMode := AckModeAuto
	if v, _ := frame.Headers.Get(HeaderAck); v == AckModeClient {
		ackMode = AckModeClient
	}

	// process
	var err error
	switch {
	case strings.HasPrefix(destination, api.QueuePrefix):
		err = h.server.queues.Subscribe(destination, h, ackMode)
	case strings.HasPrefix(destination, api.TopicPrefix):
		err = h.server.topics.Subscribe(destination, h)
	default:
		h.replyError("routing error", fmt.Errorf("%w: %s", ErrRouting, destination))
		return true
	}
	if err != nil {
		_handlerLogger.Errorf("SUBSCRIBE to [%s] failed on session [%s]: %s", destination, h.session, err)
		h.replyError("internal error", err)
		return true
	}

	// prepare output
	h.maybeReceipt(frame)
	return true
}

func (h *connHandler) handleUnsubscribe(frame *Frame) bool {
	// validation
	destination, ok := frame.Headers.Get(HeaderDestination)
	if !ok {
		h.replyError("protocol error", fmt.Errorf("%w: UNSUBSCRIBE requires a destination header", ErrProtocol))
		return false
	}

	// process
	var err error
	switch {
	case strings.HasPrefix(destination, api.QueuePrefix):
		err = h.server.queues.Unsubscribe(destination, h)
	case strings.HasPrefix(destination, api.TopicPrefix):
		err = h.server.topics.Unsubscribe(destination, h)
	default:
		h.replyError("routing error", fmt.Errorf("%w: %s", ErrRouting, destination))
		return true
	}
	if err != nil {
		_handlerLogger.Errorf("UNSUBSCRIBE from [%s] failed on session [%s]: %s", destination, h.session, err)
		h.replyError("internal error", err)
		return true
	}

	// prepare output
	h.maybeReceipt(frame)
	return true
}

func (h *connHandler) handleAck(frame *Frame) bool {
	// validation
	messageId, ok := frame.Headers.Get(HeaderMessageId)
	if !ok {
		h.replyError("protocol error", fmt.Errorf("%w: ACK requires a message-id header", ErrProtocol))
		return false
	}

	// process
	if err := h.server.queues.Ack(h, messageId); err != nil {
		_handlerLogger.Errorf("ACK of [%s] failed on session [%s]: %s", messageId, h.session, err)
		h.replyError("internal error", err)
		return true
	}

	// prepare output
	h.maybeReceipt(frame)
	return true
}

func (h *connHandler) handleDisconnect(frame *Frame) bool {
	// the read loop tears the session down once this returns
	h.maybeReceipt(frame)
	return false
}

// maybeReceipt answers the receipt header of a successfully processed frame.
func (h *connHandler) maybeReceipt(frame *Frame) {
	if receipt, ok := frame.Headers.Get(HeaderReceipt); ok {
		h.SendFrame(newReceiptFrame(receipt))
	}
}

// replyError pushes an ERROR frame carrying a short message header and the
// full reason in the body. Whether the connection closes is the caller's
// decision.
func (h *connHandler) replyError(message string, err error) {
	h.SendFrame(newErrorFrame(message, err.Error()))
}
