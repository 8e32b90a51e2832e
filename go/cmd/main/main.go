package main

import (
	"github.com/il2corn/il2corn/go/cmd"

	_ "github.com/il2corn/il2corn/go/cmd/dump"
	_ "github.com/il2corn/il2corn/go/cmd/info"
	_ "github.com/il2corn/il2corn/go/cmd/search"
)

func main() { cmd.Main() }
