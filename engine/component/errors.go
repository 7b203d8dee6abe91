package component

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a handle does not resolve to a live record.
	// Callers treat it as "the entity no longer exists".
	ErrNotFound = errors.New("component: not found")

	// ErrStructural marks programmer errors in command production. Anything wrapping
	// it asserts in debug builds and is logged and dropped otherwise.
	ErrStructural = errors.New("component: structural violation")

	// ErrTypeMismatch is returned when a handle names a record of a different type.
	ErrTypeMismatch = fmt.Errorf("%w: type mismatch", ErrStructural)

	// ErrDuplicate is returned when a record is created with a handle that is already live.
	ErrDuplicate = fmt.Errorf("%w: duplicate handle", ErrStructural)

	// ErrInvalidHandle is returned for the zero handle or an unknown component type.
	ErrInvalidHandle = fmt.Errorf("%w: invalid handle", ErrStructural)
)

var (
	// ErrWriteOutOfBounds is returned when a texture write region exceeds the texture extent.
	ErrWriteOutOfBounds = errors.New("component: texture write out of bounds")

	// ErrInvalidMip is returned when a texture write targets a mip level the texture does not have.
	ErrInvalidMip = errors.New("component: invalid mip level")

	// ErrPixelDataLength is returned when a texture write carries too few components.
	ErrPixelDataLength = errors.New("component: incorrect pixel data length")

	// ErrBufferWriteRange is returned when a buffer write falls outside the buffer.
	ErrBufferWriteRange = errors.New("component: buffer write out of range")
)
