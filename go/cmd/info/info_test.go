package info

import (
	"bytes"
	"strings"
	"testing"

	"github.com/il2corn/il2corn/go/cmd"
	"github.com/il2corn/il2corn/go/models"
	"github.com/il2corn/il2corn/go/models/mock"
)

func TestPrint(t *testing.T) {
	bin := mock.NewBinary(models.ArchArm64, []mock.Section{
		{Name: ".text", Addr: 0x1000, Flags: mock.Text, Data: make([]byte, 2048)},
		{Name: ".bss", Addr: 0x2000, Size: 0x100, Flags: mock.BSS},
	},
		models.Symbol{Name: "sym10", Addr: 0x1010, Kind: models.SymbolFunction},
		models.Symbol{Name: "sym2", Addr: 0x1020, Kind: models.SymbolFunction},
	)
	var out bytes.Buffer
	Print(&cmd.Printer{W: &out}, bin, true)
	s := out.String()
	for _, want := range []string{"arm64", ".text", "2.0 KiB", ".bss", "r-x"} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in:\n%s", want, s)
		}
	}
	if strings.Index(s, "sym2") > strings.Index(s, "sym10") {
		t.Errorf("symbols not naturally sorted:\n%s", s)
	}
}
