// Command loxi is the Lox interpreter's command-line entrypoint: run a
// script file, or drop into an interactive REPL when given none.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/sayotte-lox/loxi/internal/config"
	"github.com/sayotte-lox/loxi/internal/lox"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// Exit codes mirror spec §6 exactly: 0 success, 65 syntax/resolution
// error, 70 runtime error, -1 fatal/usage error.
const (
	exitOK      = 0
	exitSyntax  = 65
	exitRuntime = 70
	exitFatal   = -1
)

func run(args []string) int {
	fs := flag.NewFlagSet("loxi", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loxi [options] [script]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", ".loxi.toml", "path to an optional TOML config file")
	strict := fs.Bool("strict-uninitialized", false, "error on reading an uninitialized variable instead of yielding nil")
	maxEnvs := fs.Int("max-environments", 0, "override the GC's live-environment cap (0 = default)")
	pinDepth := fs.Int("pin-stack-depth", 0, "override the GC pin-stack depth (0 = default)")
	gcTrace := fs.Bool("gc-trace", false, "log mark/sweep statistics after every collection")
	verbose := fs.Bool("v", false, "verbose (debug-level) logging")
	noColor := fs.Bool("no-color", false, "disable colorized diagnostics even on a terminal")

	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return exitFatal
	}

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFatal
	}
	override := fileCfg
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strict-uninitialized":
			override.StrictUninitializedVariables = *strict
		case "max-environments":
			override.MaxEnvironments = int32(*maxEnvs)
		case "pin-stack-depth":
			override.PinStackDepth = *pinDepth
		case "gc-trace":
			override.GCTrace = *gcTrace
		case "v":
			override.Verbose = *verbose
		}
	})
	cfg := fileCfg.Merge(override)

	// fatih/color's default NoColor detection looks at stdout; loxi's
	// diagnostics go to stderr, so it's checked explicitly here.
	if *noColor || !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}

	logger := newLogger(cfg.Verbose || cfg.GCTrace)
	heapCfg := lox.DefaultHeapConfig()
	if cfg.MaxEnvironments != 0 {
		heapCfg.MaxEnvironments = cfg.MaxEnvironments
	}
	if cfg.PinStackDepth != 0 {
		heapCfg.PinStackDepth = cfg.PinStackDepth
	}
	if cfg.GCTrace {
		heapCfg.Trace = gcTraceHook(logger)
	}

	if fs.NArg() == 1 {
		return runFile(fs.Arg(0), cfg, heapCfg, logger)
	}
	return runREPL(cfg, heapCfg, logger)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func gcTraceHook(logger zerolog.Logger) func(beforeValues, afterValues, beforeEnvs, afterEnvs int32, newThreshold int32) {
	return func(beforeValues, afterValues, beforeEnvs, afterEnvs, newThreshold int32) {
		logger.Debug().
			Int32("values_before", beforeValues).
			Int32("values_after", afterValues).
			Int32("environments_before", beforeEnvs).
			Int32("environments_after", afterEnvs).
			Int32("next_threshold", newThreshold).
			Msg("gc collection")
	}
}

func runFile(path string, cfg config.Config, heapCfg lox.HeapConfig, logger zerolog.Logger) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFatal
	}

	interp := lox.NewInterpreter(lox.Options{
		Stdout:                       os.Stdout,
		Stderr:                       os.Stderr,
		Heap:                         heapCfg,
		StrictUninitializedVariables: cfg.StrictUninitializedVariables,
	})

	stmts, diagErr := compile(interp, string(src))
	if diagErr != nil {
		printDiagnostic(diagErr)
		return exitSyntax
	}
	if err := interp.Interpret(stmts); err != nil {
		printDiagnostic(err)
		return exitRuntime
	}
	return exitOK
}

// compile runs the scan -> parse -> resolve pipeline described in
// spec §2/§6 and merges the resulting bindings into interp. It returns
// the first error encountered, already formatted as the spec's
// "[line N] Error<location>: message" diagnostic.
func compile(interp *lox.Interpreter, src string) ([]lox.Stmt, error) {
	scanner := &lox.Scanner{}
	tokens := scanner.ScanTokens(src)
	if errs := scanner.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}

	parser := lox.NewParser(tokens)
	stmts, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	resolver := lox.NewResolver()
	if err := resolver.Resolve(stmts); err != nil {
		return nil, err
	}
	interp.AddBindings(resolver.Bindings())
	return stmts, nil
}

func printDiagnostic(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintln(os.Stderr, red(err.Error()))
}
