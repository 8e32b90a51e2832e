package loader

import "encoding/binary"

func getMagic(data []byte) []byte {
	if len(data) < 4 {
		return nil
	}
	return data[:4]
}

func magicLE(data []byte) uint32 {
	if m := getMagic(data); m != nil {
		return binary.LittleEndian.Uint32(m)
	}
	return 0
}
