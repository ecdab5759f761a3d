package main

import (
	"context"
	"fmt"
	"os"

	"pytestlab/cmd/pytestlabctl/commands"
)

func main() {
	root := commands.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "pytestlabctl:", err)
		os.Exit(commands.ExitCodeFor(err))
	}
}
