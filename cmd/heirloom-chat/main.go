// Command heirloom-chat talks to a museum persona from the terminal.
//
// Usage:
//
//	heirloom-chat personas
//	heirloom-chat talk "Rosewood Chair"
//	heirloom-chat ask "Oak Cradle" "Where do you come from?" --output json
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already printed the error
		os.Exit(1)
	}
}
