package main

import (
	"os"

	"github.com/mattn/go-isatty"
)

// isStdoutTTY reports whether stdout is an interactive terminal.
func isStdoutTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
