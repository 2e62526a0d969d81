// Package logica ties the lexer, parser, compiler, kernel, and interpreter
// into the three entry points a host program or CLI needs: Tokenize, Check,
// and Run.
package logica

import (
	"io"
	"log/slog"
	"sort"

	"github.com/aledsdavies/logica/core/errors"
	"github.com/aledsdavies/logica/core/token"
	"github.com/aledsdavies/logica/runtime/compiler"
	"github.com/aledsdavies/logica/runtime/interp"
	"github.com/aledsdavies/logica/runtime/kernel"
	"github.com/aledsdavies/logica/runtime/lexer"
	"github.com/aledsdavies/logica/runtime/parser"
)

// runConfig collects Run's optional settings.
type runConfig struct {
	logger *slog.Logger
	clock  kernel.Clock
	quiet  bool
	writer io.Writer
}

// RunOption configures a Run call.
type RunOption func(*runConfig)

// WithLogger routes the kernel's structured logs to logger instead of
// slog.Default(). The interpreter itself does not log.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = logger }
}

// WithClock overrides the kernel's ledger timestamp source. Tests should
// supply a monotone counter so ledger hashes are reproducible.
func WithClock(clock kernel.Clock) RunOption {
	return func(c *runConfig) { c.clock = clock }
}

// WithQuiet suppresses Output on the returned *interp.Result (it is still
// collected internally so Writer, if set, still receives every line) --
// useful for callers that only care whether the program completed.
func WithQuiet() RunOption {
	return func(c *runConfig) { c.quiet = true }
}

// WithWriter streams every output line to w as the program produces it, in
// addition to collecting them on the returned Result. A nil writer (the
// default) means no streaming.
func WithWriter(w io.Writer) RunOption {
	return func(c *runConfig) { c.writer = w }
}

// Tokenize lexes source and returns its token stream, or the first
// *errors.LexError encountered.
func Tokenize(source string) ([]token.Token, error) {
	return lexer.Tokenize(source, nil)
}

// CheckResult is what a successful Check reports about a program.
type CheckResult struct {
	Speakers  []string
	Functions []string
	Worlds    []string
}

// Check parses and compiles source, running the axiom checker without
// executing anything. It returns the first *errors.LexError,
// *errors.ParseError, or *errors.AxiomViolation encountered.
func Check(source string) (*CheckResult, error) {
	cp, err := compile(source)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cp.Functions))
	for name := range cp.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return &CheckResult{Speakers: cp.Speakers, Functions: names, Worlds: cp.Worlds}, nil
}

// Run parses, compiles, and executes source against a fresh Mary kernel,
// returning the output lines the program produced.
func Run(source string, opts ...RunOption) (*interp.Result, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	cp, err := compile(source)
	if err != nil {
		return nil, err
	}
	k := kernel.New(cfg.clock, cfg.logger)
	res, err := interp.RunTo(cp, k, cfg.writer)
	if err != nil {
		return nil, err
	}
	if cfg.quiet {
		res.Output = nil
	}
	return res, nil
}

// LedgerEntry is a kernel ledger entry with its speaker id resolved to a
// name, ready for display.
type LedgerEntry struct {
	kernel.Entry
	SpeakerName string
}

// RunLedger runs source like Run, then returns the final n ledger entries
// (most-recent first) from the kernel it ran against -- the facade the
// `logica ledger` CLI subcommand uses, since the kernel itself is not part
// of Run's public result.
func RunLedger(source string, n int, opts ...RunOption) ([]LedgerEntry, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	cp, err := compile(source)
	if err != nil {
		return nil, err
	}
	k := kernel.New(cfg.clock, cfg.logger)
	if _, err := interp.RunTo(cp, k, cfg.writer); err != nil {
		return nil, err
	}
	entries := k.LedgerLast(n)
	out := make([]LedgerEntry, len(entries))
	for i, e := range entries {
		out[i] = LedgerEntry{Entry: e, SpeakerName: k.SpeakerName(e.SpeakerID)}
	}
	return out, nil
}

func compile(source string) (*compiler.CompiledProgram, error) {
	prog, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(prog)
}

// Classify recovers the wire-format error kind from any error this package
// returns, or ("", false) if err did not originate from Logica's pipeline.
func Classify(err error) (errors.Kind, bool) {
	c, ok := err.(errors.Classified)
	if !ok {
		return "", false
	}
	return c.Kind(), true
}
