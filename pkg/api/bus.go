package api

import "context"

type Bus interface {
	// CallStream initiates a bidirectional stream to a remote handler.
	// The initial message routes the call; the returned BidiStream
	// carries subscription events and responses until closed.
	CallStream(ctx context.Context, msg Routeable) (BidiStream, error)
}
