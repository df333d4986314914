package ctd

import (
	"errors"
	"fmt"
)

// FrameSize is the length of a sample response: T, P and C as little-endian
// 16-bit counts.
const FrameSize = 6

// ErrUnexpectedLength is matched by errors.Is for any FrameError caused by a
// response that is not exactly FrameSize bytes.
var ErrUnexpectedLength = errors.New("unexpected frame length")

// FrameErrorKind classifies frame decode failures. The wire format carries no
// checksum, so length is the only thing that can be wrong.
type FrameErrorKind int

const (
	UnexpectedLength FrameErrorKind = iota
)

// FrameError reports a sample response that could not be decoded.
type FrameError struct {
	Kind FrameErrorKind
	Got  int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame: unexpected length %d, want %d", e.Got, FrameSize)
}

// Is lets errors.Is match ErrUnexpectedLength.
func (e *FrameError) Is(target error) bool {
	return target == ErrUnexpectedLength && e.Kind == UnexpectedLength
}

// Decode converts a raw sample response into counts. Frames of any length
// other than FrameSize are rejected whole; nothing is partially decoded.
func Decode(frame []byte) (RawSample, error) {
	if len(frame) != FrameSize {
		return RawSample{}, &FrameError{Kind: UnexpectedLength, Got: len(frame)}
	}
	return RawSample{
		T: count(frame[0], frame[1]),
		P: count(frame[2], frame[3]),
		C: count(frame[4], frame[5]),
	}, nil
}

// Encode is the inverse of Decode.
func Encode(s RawSample) []byte {
	return []byte{
		byte(s.T), byte(s.T >> 8),
		byte(s.P), byte(s.P >> 8),
		byte(s.C), byte(s.C >> 8),
	}
}

func count(low, high byte) uint16 {
	return uint16(low) + uint16(high)*256
}
