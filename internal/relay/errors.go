package relay

import "errors"

// Session-local failures. Each one terminates only the operation that
// raised it; rooms and connections stay up.
var (
	errRoomNotFound     = errors.New("room not found")
	errPayloadMalformed = errors.New("payload malformed")
	errBadBurnPolicy    = errors.New("invalid burn policy")
)
