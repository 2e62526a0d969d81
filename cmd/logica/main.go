package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/logica"
	"github.com/aledsdavies/logica/core/errors"
)

func main() {
	root := &cobra.Command{
		Use:           "logica",
		Short:         "tokenize, check, and run Logica programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(tokenizeCmd(), checkCmd(), runCmd(), ledgerCmd())

	if err := root.Execute(); err != nil {
		emitError(err)
		os.Exit(1)
	}
}

func readSource(args []string) (string, error) {
	if len(args) == 0 {
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func tokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize [file]",
		Short: "print the token stream for a Logica source file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args)
			if err != nil {
				return err
			}
			tokens, err := logica.Tokenize(src)
			if err != nil {
				return err
			}
			for _, tok := range tokens {
				fmt.Fprintln(cmd.OutOrStdout(), tok.String())
			}
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "parse and axiom-check a Logica program without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args)
			if err != nil {
				return err
			}
			res, err := logica.Check(src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "speakers: %v\nfunctions: %v\nworlds: %v\n", res.Speakers, res.Functions, res.Worlds)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var debug, quiet bool
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "run a Logica program and print its speak output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args)
			if err != nil {
				return err
			}
			var opts []logica.RunOption
			if debug {
				opts = append(opts, logica.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
			}
			if quiet {
				opts = append(opts, logica.WithQuiet())
			} else {
				opts = append(opts, logica.WithWriter(cmd.OutOrStdout()))
			}
			_, err = logica.Run(src, opts...)
			return err
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable structured debug logging to stderr")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress speak/inspect/history output, run for side effects only")
	return cmd
}

func ledgerCmd() *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "ledger [file]",
		Short: "run a Logica program and print its last N ledger entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args)
			if err != nil {
				return err
			}
			entries, err := logica.RunLedger(src, last)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d [%s] %s:%s %s\n", e.ID, e.SpeakerName, e.Operation, e.Action, e.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 10, "number of most-recent ledger entries to print")
	return cmd
}

// emitError prints a Logica pipeline error as JSON matching the wire format,
// or a plain message for anything else.
func emitError(err error) {
	kind, ok := logica.Classify(err)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	payload := map[string]any{"kind": string(kind), "message": err.Error()}
	switch e := err.(type) {
	case *errors.LexError:
		payload["line"], payload["col"] = e.Line, e.Col
	case *errors.ParseError:
		payload["line"], payload["col"] = e.Line, e.Col
	case *errors.AxiomViolation:
		payload["line"], payload["col"], payload["axiom"] = e.Line, e.Col, e.Axiom
	case *errors.RuntimeError:
		payload["line"], payload["col"] = e.Line, e.Col
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
