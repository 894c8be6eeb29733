package main

import (
	"github.com/colpack/colpack/cmd/colpack/cmd"
)

func main() {
	cmd.Execute()
}
