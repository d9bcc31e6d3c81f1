package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the furniture you can talk to",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getChatter(cmd)
		if c == nil {
			return fmt.Errorf("chat not initialized")
		}
		profiles := c.services.Catalog.All()

		if mustGetString(cmd, "output") == "json" {
			return writeJSON(cmd.OutOrStdout(), profiles)
		}
		for _, p := range profiles {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s, %s (%s)\n", p.Title, p.Type, p.Period, p.Accent)
		}
		return nil
	},
}

func init() {
	personasCmd.Flags().String("output", "text", "Output format: text or json")
	rootCmd.AddCommand(personasCmd)
}
