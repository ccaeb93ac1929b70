// Command ndvlink browses and edits Natural sources on a development server.
package main

import (
	"os"

	"github.com/Iron-Ham/ndvlink/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
