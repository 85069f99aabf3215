package api

import (
	"errors"
	"fmt"
)

var (
	ERR_SEQUENCE_MISMATCH = errors.New("sequence mismatch")
	ERR_TOPIC_REQUIRED    = errors.New("topic is required")
)

// RemoteError is a failure reported by the far side of the channel. The
// wire carries an arbitrary serialized payload; it is normalized into
// this type before reaching any local observer.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// AsError coerces a remote-reported failure payload into a proper error
// value. Local observers never see raw wire payloads on their error path.
func AsError(v any) error {
	switch val := v.(type) {
	case nil:
		return &RemoteError{Message: "unknown remote error"}
	case error:
		return val
	case string:
		return &RemoteError{Message: val}
	case []byte:
		return &RemoteError{Message: string(val)}
	default:
		return &RemoteError{Message: fmt.Sprintf("%v", val)}
	}
}
