package main

import (
	"os"

	"github.com/ariel-frischer/stepflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
