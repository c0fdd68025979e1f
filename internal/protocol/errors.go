package protocol

// Error messages carried by ErrorMsg. Clients match on these strings, so
// treat them as part of the wire contract.
const (
	ErrInvalidMessage     = "Invalid message"
	ErrInvalidCubeID      = "Invalid cube id"
	ErrUnknownMessageType = "Unknown message type"
)

var knownMessages = map[string]struct{}{
	ErrInvalidMessage:     {},
	ErrInvalidCubeID:      {},
	ErrUnknownMessageType: {},
}

func IsKnownError(message string) bool {
	_, ok := knownMessages[message]
	return ok
}
