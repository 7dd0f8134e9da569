package scale

import "errors"

var (
	// ErrNonCanonicalCompact is returned when a compact integer uses a wider
	// mode than its value requires.
	ErrNonCanonicalCompact = errors.New("scale: non-canonical compact integer")

	// ErrCompactOverflow is returned when a compact integer exceeds uint64.
	ErrCompactOverflow = errors.New("scale: compact integer overflows uint64")

	// ErrInvalidOption is returned when an Option tag is neither 0 nor 1.
	ErrInvalidOption = errors.New("scale: invalid option tag")

	// ErrInvalidBool is returned when a bool byte is neither 0 nor 1.
	ErrInvalidBool = errors.New("scale: invalid bool")

	// ErrTrailingBytes is returned when input remains after a full decode.
	ErrTrailingBytes = errors.New("scale: trailing bytes after value")

	// ErrLengthTooLarge is returned when a length prefix exceeds the input.
	ErrLengthTooLarge = errors.New("scale: length prefix exceeds input")

	// ErrUnsupportedType is returned for Go kinds with no SCALE mapping.
	ErrUnsupportedType = errors.New("scale: unsupported type")

	// ErrNotPointer is returned when Decode is given a non-pointer target.
	ErrNotPointer = errors.New("scale: decode target must be a non-nil pointer")
)
