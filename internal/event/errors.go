package event

import "errors"

var (
	// ErrMalformedEvent reports a push delivery that cannot be normalized:
	// undecodable JSON or a payload missing its event tag or hub id.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnknownCategory reports an event tag outside the known vocabulary.
	ErrUnknownCategory = errors.New("unknown event category")
)
