package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/runixer/heirloom/internal/dialogue"
)

var askCmd = &cobra.Command{
	Use:   "ask <persona> <question>",
	Short: "Ask a persona one question and print the reply",
	Long: `Run a single turn without history. Useful for trying prompts.

Example:
  heirloom-chat ask "Oak Cradle" "Where do you come from?"
  heirloom-chat ask "Rosewood Chair" "Hello" --check-response bonjour --output json`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getChatter(cmd)
		if c == nil {
			return fmt.Errorf("chat not initialized")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return c.ask(ctx, args[0], strings.Join(args[1:], " "),
			mustGetString(cmd, "check-response"),
			mustGetString(cmd, "output"),
			cmd.OutOrStdout(),
		)
	},
}

func init() {
	askCmd.Flags().String("check-response", "", "Fail unless the reply contains this text (case-insensitive)")
	askCmd.Flags().String("output", "text", "Output format: text or json")
	rootCmd.AddCommand(askCmd)
}

type askOutput struct {
	Persona    string   `json:"persona"`
	Question   string   `json:"question"`
	Reply      string   `json:"reply"`
	Options    []string `json:"options"`
	Strategy   string   `json:"strategy,omitempty"`
	Degraded   bool     `json:"degraded"`
	DurationMs int64    `json:"duration_ms"`
	Failures   []string `json:"failures,omitempty"`
}

func (c *chatter) ask(ctx context.Context, persona, question, checkResponse, format string, out io.Writer) error {
	result, err := c.services.Dialogue.Turn(ctx, dialogue.TurnRequest{Persona: persona, Input: question})
	if err != nil {
		return err
	}

	var failures []string
	if checkResponse != "" && !strings.Contains(strings.ToLower(result.Reply), strings.ToLower(checkResponse)) {
		failures = append(failures, fmt.Sprintf("response does not contain %q (case-insensitive)", checkResponse))
	}

	o := askOutput{
		Persona:    result.Persona.Title,
		Question:   question,
		Reply:      result.Reply,
		Options:    result.Options,
		Strategy:   result.Strategy,
		Degraded:   result.Degraded,
		DurationMs: result.Duration.Milliseconds(),
		Failures:   failures,
	}
	if o.Options == nil {
		o.Options = []string{}
	}

	if format == "json" {
		if err := writeJSON(out, o); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s: %s\n", o.Persona, o.Reply)
		if len(o.Options) > 0 {
			fmt.Fprintln(out, c.t("chat.options"))
			for i, opt := range o.Options {
				fmt.Fprintf(out, "  %d. %s\n", i+1, opt)
			}
		}
		for _, f := range failures {
			fmt.Fprintf(out, "FAIL: %s\n", f)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d check(s) failed", len(failures))
	}
	return nil
}
