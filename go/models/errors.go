package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrUnknownFormat = errors.New("unknown binary format")

// TruncatedError reports a read that ran past the end of its buffer.
type TruncatedError struct {
	Expected  int
	Available int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated data: expected %d bytes, got %d", e.Expected, e.Available)
}

type MagicError struct {
	Expected uint64
	Actual   uint64
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("invalid magic: expected %#x, got %#x", e.Expected, e.Actual)
}

type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported metadata version %d", e.Version)
}

type OutOfBoundsError struct {
	Addr uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("address out of bounds: %#x", e.Addr)
}

type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Msg
}

func ParseErrorf(format string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

func IsTruncated(err error) bool {
	_, ok := errors.Cause(err).(*TruncatedError)
	return ok
}
