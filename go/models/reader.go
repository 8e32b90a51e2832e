package models

import (
	"encoding/binary"
	"strings"
)

// Reader is a bounds-checked cursor over a byte buffer. Reads past the end
// fail with *TruncatedError and leave the cursor where it was.
type Reader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func NewReader(buf []byte, order binary.ByteOrder) *Reader {
	return &Reader{buf: buf, order: order}
}

func NewReaderAt(buf []byte, pos int, order binary.ByteOrder) *Reader {
	return &Reader{buf: buf, pos: pos, order: order}
}

func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }
func (r *Reader) Pos() int                    { return r.pos }
func (r *Reader) SetPos(pos int)              { r.pos = pos }
func (r *Reader) Len() int                    { return len(r.buf) }

func (r *Reader) Remaining() int {
	if r.pos < 0 || r.pos >= len(r.buf) {
		return 0
	}
	return len(r.buf) - r.pos
}

func (r *Reader) need(n int) error {
	if n < 0 || r.pos < 0 || r.Remaining() < n {
		return &TruncatedError{Expected: n, Available: r.Remaining()}
	}
	return nil
}

func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Word reads a pointer-sized value.
func (r *Reader) Word(bits int) (uint64, error) {
	if bits == 64 {
		return r.Uint64()
	}
	v, err := r.Uint32()
	return uint64(v), err
}

func (r *Reader) PeekUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.buf[r.pos:]), nil
}

// CString reads a null-terminated string. The terminator must appear within
// the first maxLen bytes, otherwise the read fails.
func (r *Reader) CString(maxLen int) (string, error) {
	if r.Remaining() == 0 {
		return "", &TruncatedError{Expected: 1, Available: 0}
	}
	end := len(r.buf)
	if maxLen >= 0 && maxLen < end-r.pos {
		end = r.pos + maxLen
	}
	for i := r.pos; i < end; i++ {
		if r.buf[i] == 0 {
			s := strings.ToValidUTF8(string(r.buf[r.pos:i]), "\uFFFD")
			r.pos = i + 1
			return s, nil
		}
	}
	return "", ParseErrorf("unterminated string at offset %#x", r.pos)
}
