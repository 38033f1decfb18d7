package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"github.com/sayotte-lox/loxi/internal/config"
	"github.com/sayotte-lox/loxi/internal/lox"
)

// runREPL implements spec §6's interactive mode: a 1-based line
// counter prompt, a welcome banner, and independent per-line parse/
// resolve/execute that shares the Interpreter's globals and heap
// across lines. Grounded on original_source/src/main.c's repl(), which
// prints the same two banner lines and reads one line of input at a
// time in a loop that never exits on error.
func runREPL(cfg config.Config, heapCfg lox.HeapConfig, logger zerolog.Logger) int {
	interp := lox.NewInterpreter(lox.Options{
		Stdout:                       os.Stdout,
		Stderr:                       os.Stderr,
		Heap:                         heapCfg,
		StrictUninitializedVariables: cfg.StrictUninitializedVariables,
		Interactive:                  true,
	})

	fmt.Println("Welcome to LOXI, the Lox Interpreter")
	fmt.Println("Type 'help();' for help or 'quit();' to exit.")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "1> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "^D",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFatal
	}
	defer rl.Close()

	lineNumber := 1
	for {
		rl.SetPrompt(fmt.Sprintf("%d> ", lineNumber))
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				lineNumber++
				continue
			}
			if err == io.EOF {
				return exitOK
			}
			fmt.Fprintln(os.Stderr, err)
			return exitFatal
		}
		lineNumber++

		stmts, diagErr := compile(interp, line)
		if diagErr != nil {
			printDiagnostic(diagErr)
			continue
		}
		if err := interp.Interpret(stmts); err != nil {
			if errors.Is(err, lox.ErrQuit) {
				return exitOK
			}
			printDiagnostic(err)
			continue
		}
		interp.CollectGarbage()
		if cfg.GCTrace {
			logger.Debug().Msg("line evaluated")
		}
	}
}
