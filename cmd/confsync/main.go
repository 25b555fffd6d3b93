package main

import (
	"os"

	"github.com/treeline-labs/confsync-cli/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute())
}
