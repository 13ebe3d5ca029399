// Command curio is the entry point for the curio topic research assistant.
// It researches topics via web search, indexes what it finds in a vector
// store, and answers questions grounded in the indexed material.
package main

import (
	"fmt"
	"os"

	"github.com/curio-ai/curio-go/cmd/curio/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
