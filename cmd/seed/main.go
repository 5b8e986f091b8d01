package main

import (
	"os"

	"github.com/JonMunkholm/stagepipe/internal/cli"
)

func main() {
	os.Exit(int(cli.RunSeed()))
}
