package events

import "errors"

var (
	errAlreadyConnected = errors.New("channel already connected")
	errChannelClosed    = errors.New("channel closed")
)
