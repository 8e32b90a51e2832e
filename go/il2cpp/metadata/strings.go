package metadata

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// String returns the null-terminated UTF-8 string at index in the string
// table. A string missing its terminator runs to the end of the data. It
// returns false for out of range offsets or invalid UTF-8.
func (m *Metadata) String(index uint32) (string, bool) {
	if v, ok := m.strings.Get(index); ok {
		return v.(string), true
	}
	off := uint64(m.Header.String.Offset) + uint64(index)
	if off >= uint64(len(m.data)) {
		return "", false
	}
	raw := m.data[off:]
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		end = len(raw)
	}
	if !utf8.Valid(raw[:end]) {
		return "", false
	}
	s := string(raw[:end])
	m.strings.Add(index, s)
	return s, true
}

// StringOr is String with a fallback for unresolvable indices.
func (m *Metadata) StringOr(index uint32, fallback string) string {
	if s, ok := m.String(index); ok {
		return s
	}
	return fallback
}

// StringLiteral decodes literal i from the UTF-16LE literal data region.
func (m *Metadata) StringLiteral(i int) (string, bool) {
	if i < 0 || i >= len(m.StringLiterals) {
		return "", false
	}
	lit := &m.StringLiterals[i]
	if lit.DataIndex < 0 {
		return "", false
	}
	off := uint64(m.Header.StringLiteralData.Offset) + uint64(lit.DataIndex)
	n := uint64(lit.Length) * 2
	if off+n > uint64(len(m.data)) {
		return "", false
	}
	return decodeUTF16(m.data[off : off+n])
}

// decodeUTF16 rejects unpaired surrogates rather than substituting U+FFFD.
func decodeUTF16(raw []byte) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(raw) / 2)
	for i := 0; i+1 < len(raw); i += 2 {
		u := rune(binary.LittleEndian.Uint16(raw[i:]))
		switch {
		case u < 0xd800 || u > 0xdfff:
			sb.WriteRune(u)
		case u < 0xdc00 && i+3 < len(raw):
			lo := rune(binary.LittleEndian.Uint16(raw[i+2:]))
			r := utf16.DecodeRune(u, lo)
			if r == utf8.RuneError {
				return "", false
			}
			sb.WriteRune(r)
			i += 2
		default:
			return "", false
		}
	}
	return sb.String(), true
}
