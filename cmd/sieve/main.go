package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/stream"
	"golang.org/x/term"
)

// Process exit codes, one per error class.
const (
	exitOK      = 0
	exitOther   = 1
	exitCompile = 2
	exitAlloc   = 3
	exitInput   = 4
	exitScan    = 5
)

func main() {
	if err := Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var (
		compileErr *matcher.CompileError
		allocErr   *matcher.AllocError
		inputErr   *stream.InputError
		scanErr    *matcher.ScanError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &compileErr):
		return exitCompile
	case errors.As(err, &allocErr):
		return exitAlloc
	case errors.As(err, &inputErr):
		return exitInput
	case errors.As(err, &scanErr):
		return exitScan
	default:
		return exitOther
	}
}

func printError(w io.Writer, err error) {
	label := color.New(color.Bold, color.FgRed)
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) || os.Getenv("NO_COLOR") != "" {
		label.DisableColor()
	}
	fmt.Fprintf(w, "%s %v\n", label.Sprint("ERROR:"), err)
}
