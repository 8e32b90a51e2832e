package models

type Arch string

const (
	ArchX86     Arch = "x86"
	ArchX86_64  Arch = "x86_64"
	ArchArm     Arch = "arm"
	ArchArm64   Arch = "arm64"
	ArchUnknown Arch = "unknown"
)

// PointerSize falls back to 8 for unknown architectures.
func (a Arch) PointerSize() int {
	switch a {
	case ArchX86, ArchArm:
		return 4
	default:
		return 8
	}
}

func (a Arch) Is64() bool {
	return a == ArchX86_64 || a == ArchArm64
}

type Format int

const (
	FormatUnknown Format = iota
	FormatPE
	FormatELF
	FormatMachO
)

func (f Format) String() string {
	switch f {
	case FormatPE:
		return "PE"
	case FormatELF:
		return "ELF"
	case FormatMachO:
		return "Mach-O"
	default:
		return "unknown"
	}
}
