package models

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// StrucStream packs and unpacks struc records in a fixed byte order.
type StrucStream struct {
	Stream io.ReadWriter
	Order  binary.ByteOrder
}

func NewStrucStream(buf []byte, order binary.ByteOrder) *StrucStream {
	return &StrucStream{Stream: bytes.NewBuffer(buf), Order: order}
}

func (s *StrucStream) Pack(i interface{}) error {
	return errors.WithStack(struc.PackWithOrder(s.Stream, i, s.Order))
}

func (s *StrucStream) Unpack(i interface{}) error {
	return errors.WithStack(struc.UnpackWithOrder(s.Stream, i, s.Order))
}

// Unpack consumes struc.Sizeof(v) bytes and decodes them into v, so a short
// buffer surfaces as a TruncatedError rather than an io error.
func (r *Reader) Unpack(v interface{}) error {
	size, err := struc.Sizeof(v)
	if err != nil {
		return errors.WithStack(err)
	}
	raw, err := r.Bytes(size)
	if err != nil {
		return err
	}
	return NewStrucStream(raw, r.order).Unpack(v)
}
