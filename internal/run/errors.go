package run

import (
	"context"
	"errors"
)

var (
	// ErrEmptyRequest rejects a blank or whitespace-only request.
	ErrEmptyRequest = errors.New("empty request")

	// ErrConversationClosed rejects new runs on an ended conversation.
	ErrConversationClosed = errors.New("conversation is closed")

	// ErrEmptyTranslation means the translation collaborator returned
	// no usable text.
	ErrEmptyTranslation = errors.New("translation returned empty text")

	// ErrMissingJobID means the bridge accepted the submission but its
	// response carried no job identifier.
	ErrMissingJobID = errors.New("submission response carried no job id")
)

// isCancellation distinguishes a user- or supersession-cancelled call
// from a genuine transport failure. The cancellation path produces its
// own notice; these errors must stay silent.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
