package models

import "fmt"

// Address is an absolute virtual address. PE image-relative addresses are
// rebased by the loader before they ever reach an Address.
type Address uint64

func (a Address) Offset(off int64) Address {
	return Address(int64(a) + off)
}

func (a Address) Sub(o Address) int64 {
	return int64(a) - int64(o)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}
