// The main package for the mediarelay executable.
package main

import (
	"github.com/mediarelay/mediarelay/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
