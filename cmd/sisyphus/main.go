// sisyphus is the CLI for launching and managing background AI jobs.
package main

import (
	"os"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
