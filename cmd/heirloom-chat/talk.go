package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/dialogue"
	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/transcript"
	"github.com/runixer/heirloom/internal/web"
)

var stopWords = map[string]bool{"0": true, "exit": true, "quit": true}

var talkCmd = &cobra.Command{
	Use:   "talk [persona]",
	Short: "Start an interactive conversation with a persona",
	Long: `Start an interactive conversation. Without a persona argument the
title is asked first. Type a number to pick a starter question or one of the
suggested replies, type anything else to say it yourself, and 0, exit or quit
to stop.

Example:
  heirloom-chat talk "Rosewood Chair"
  heirloom-chat talk "Oak Cradle" --lang nl --audio-dir out/`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getChatter(cmd)
		if c == nil {
			return fmt.Errorf("chat not initialized")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		persona := ""
		if len(args) == 1 {
			persona = args[0]
		}
		return c.talk(ctx, persona, mustGetString(cmd, "audio-dir"), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	talkCmd.Flags().String("audio-dir", "", "Write each reply as audio into this directory (needs speech.enabled)")
	rootCmd.AddCommand(talkCmd)
}

func (c *chatter) t(key string) string {
	return c.services.Translator.Get(c.lang, key)
}

func (c *chatter) questions() []string {
	out := make([]string, 0, len(web.QuestionKeys))
	for _, key := range web.QuestionKeys {
		out = append(out, c.t(key))
	}
	return out
}

// talk runs the conversation loop until a stop word or end of input.
func (c *chatter) talk(ctx context.Context, persona, audioDir string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "%s\n\n", c.t("chat.welcome"))

	profile, ok := c.pickPersona(persona, scanner, out)
	if !ok {
		fmt.Fprintln(out, c.t("chat.goodbye"))
		return nil
	}

	questions := c.questions()
	var (
		history []llm.Message
		options []string
		turn    int
	)
	for {
		printMenu(out, c.t("chat.choose"), questions, c.t("chat.options"), options, c.t("chat.stop"))
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			fmt.Fprintf(out, "\n%s\n", c.t("chat.goodbye"))
			return scanner.Err()
		}
		choice := strings.TrimSpace(scanner.Text())
		if stopWords[strings.ToLower(choice)] {
			fmt.Fprintln(out, c.t("chat.goodbye"))
			return nil
		}
		input := resolveChoice(choice, questions, options)
		if input == "" {
			continue
		}

		result, err := c.services.Dialogue.Turn(ctx, dialogue.TurnRequest{
			Persona: profile.Title,
			Input:   input,
			History: history,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintf(out, "\n%s\n", c.t("chat.goodbye"))
				return nil
			}
			return fmt.Errorf("turn failed: %w", err)
		}
		history = result.History
		options = result.Options
		turn++

		fmt.Fprintf(out, "\n%s: %s\n", profile.Title, result.Reply)
		if audioDir != "" {
			c.saveAudio(ctx, audioDir, profile, turn, result.Reply, out)
		}
	}
}

func (c *chatter) pickPersona(persona string, scanner *bufio.Scanner, out io.Writer) (*catalog.Profile, bool) {
	for {
		if persona != "" {
			profile, err := c.services.Catalog.FindByTitle(persona)
			if err == nil {
				return profile, true
			}
			fmt.Fprintf(out, "%s\n", c.t("chat.not_found"))
		}
		fmt.Fprintf(out, "%s\n> ", c.t("chat.which"))
		if !scanner.Scan() {
			return nil, false
		}
		persona = strings.TrimSpace(scanner.Text())
		if stopWords[strings.ToLower(persona)] {
			return nil, false
		}
	}
}

// resolveChoice maps a menu number to its text; anything else is free input.
// Starter questions are numbered first, then the suggested replies.
func resolveChoice(choice string, questions, options []string) string {
	if n, err := strconv.Atoi(choice); err == nil {
		switch {
		case n >= 1 && n <= len(questions):
			return questions[n-1]
		case n > len(questions) && n <= len(questions)+len(options):
			return options[n-len(questions)-1]
		}
	}
	return choice
}

func printMenu(out io.Writer, header string, questions []string, optionsHeader string, options []string, stop string) {
	fmt.Fprintf(out, "\n%s\n", header)
	for i, q := range questions {
		fmt.Fprintf(out, "%d. %s\n", i+1, q)
	}
	if len(options) > 0 {
		fmt.Fprintf(out, "%s\n", optionsHeader)
		for i, o := range options {
			fmt.Fprintf(out, "%d. %s\n", len(questions)+i+1, o)
		}
	}
	fmt.Fprintln(out, stop)
}

func (c *chatter) saveAudio(ctx context.Context, dir string, profile *catalog.Profile, turn int, reply string, out io.Writer) {
	if c.services.Speech == nil {
		fmt.Fprintln(out, "(speech is disabled)")
		return
	}
	result, err := c.services.Speech.Speak(ctx, reply, profile.Accent)
	if err != nil {
		fmt.Fprintf(out, "(no audio: %v)\n", err)
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(out, "(no audio: %v)\n", err)
		return
	}
	name := fmt.Sprintf("%s_%02d.%s", transcript.SanitizeTitle(profile.Title), turn, c.audioExt())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, result.Audio, 0o644); err != nil {
		fmt.Fprintf(out, "(no audio: %v)\n", err)
		return
	}
	fmt.Fprintf(out, "(audio: %s)\n", path)
}

func (c *chatter) audioExt() string {
	if c.cfg.Speech.Provider == "fish" && c.cfg.Speech.Fish.Format != "" {
		return c.cfg.Speech.Fish.Format
	}
	return "wav"
}
