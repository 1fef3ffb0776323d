package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/ui"
)

// Options wire the process streams. Nil fields use the os defaults.
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// usageError marks a mistake in how the command was invoked.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

// Run executes args and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	if opt.In == nil {
		opt.In = os.Stdin
	}
	if opt.Out == nil {
		opt.Out = os.Stdout
	}
	if opt.Err == nil {
		opt.Err = os.Stderr
	}
	ui.SetOutput(opt.Out, opt.Err)

	root, ro := newRoot()
	root.SetArgs(args)
	root.SetIn(opt.In)
	root.SetOut(opt.Out)
	root.SetErr(opt.Err)

	err := root.ExecuteContext(ctx)
	ro.syncLogger()
	if err == nil {
		return 0
	}

	ui.Fail(err.Error())
	code := exitCode(err)
	switch {
	case code == 2:
		ui.Hint("Run `basket help` for usage.")
	case errs.IsUnavailable(err):
		ui.Hint("Is the feed server running? Check server_url or --server.")
	}
	return code
}

func exitCode(err error) int {
	var ue *usageError
	switch {
	case errors.As(err, &ue), errs.IsValidation(err):
		return 2
	case strings.HasPrefix(err.Error(), "unknown command"),
		strings.HasPrefix(err.Error(), "unknown flag"),
		strings.HasPrefix(err.Error(), "unknown shorthand flag"):
		return 2
	default:
		return 1
	}
}
