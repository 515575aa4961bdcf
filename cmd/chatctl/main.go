// chatctl talks to the Atelier chat assistant from a terminal.
package main

import (
	"os"

	"github.com/ashureev/atelier/cmd/chatctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
