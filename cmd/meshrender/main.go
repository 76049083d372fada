package main

import (
	"os"

	"github.com/psantana5/meshrender/cmd/meshrender/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
