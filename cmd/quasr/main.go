package main

import (
	"os"

	"github.com/AngelCh415/quasr/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
