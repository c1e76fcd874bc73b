package ttbin

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat reports an unsupported file version, a malformed header or a record
	// whose declared length is smaller than its known layout.
	ErrFormat = errors.New("ttbin: unsupported or malformed format")
	// ErrTruncatedRecord reports fewer bytes than a record needs.
	ErrTruncatedRecord = errors.New("ttbin: truncated record")
	// ErrUnknownTag reports a tag with no record-length entry and no built-in layout.
	ErrUnknownTag = errors.New("ttbin: unknown tag")
	// ErrCorruptRecord reports an out-of-range position record. It is only raised in
	// forgiving mode and never returned from Decode.
	ErrCorruptRecord = errors.New("ttbin: corrupt record")
)

// RecordError ties a decode failure to the tag and stream offset it happened at.
type RecordError struct {
	Tag    uint8
	Offset int
	Detail string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v (tag 0x%02x at offset %d)", e.Err, e.Tag, e.Offset)
	}
	return fmt.Sprintf("%v: %s (tag 0x%02x at offset %d)", e.Err, e.Detail, e.Tag, e.Offset)
}

func (e *RecordError) Unwrap() error { return e.Err }

func recordError(err error, tag uint8, offset int, format string, args ...any) *RecordError {
	return &RecordError{
		Tag:    tag,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
