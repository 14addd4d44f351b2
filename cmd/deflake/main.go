// Package main is the entry point for the deflake CLI.
package main

import (
	"os"

	"github.com/AndreyAkinshin/deflake/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
