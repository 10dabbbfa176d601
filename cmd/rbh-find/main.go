package main

import (
	"fmt"
	"os"

	"github.com/rbh-project/rbh/cmd/rbh-find/commands"

	// Register the built-in backends.
	_ "github.com/rbh-project/rbh/pkg/rbh/backend/badger"
	_ "github.com/rbh-project/rbh/pkg/rbh/backend/memory"
	_ "github.com/rbh-project/rbh/pkg/rbh/backend/mongo"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rbh-find: %v\n", err)
		os.Exit(1)
	}
}
