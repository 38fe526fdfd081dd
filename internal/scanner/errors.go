package scanner

import "errors"

var (
	// ErrDecodeFailure wraps any error or panic raised while decoding a frame.
	// It is recoverable: the frame/method pair simply yields no detections.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrPayloadDecode marks a detection whose payload is not valid UTF-8.
	ErrPayloadDecode = errors.New("payload is not valid UTF-8")

	// ErrUnknownMode is returned by ParseMode for unsupported source modes.
	ErrUnknownMode = errors.New("unknown source mode")
)
