package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// printlnFn is a test seam for REPL output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool
	SetupPIN(ctx context.Context, args []string) error
	Unlock(ctx context.Context, args []string) error
	Lock(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	AddTOTP(ctx context.Context, args []string) error
	Update(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Generate(ctx context.Context, args []string) error
	Strength(ctx context.Context, args []string) error
	Settings(ctx context.Context, args []string) error
	Background(ctx context.Context, args []string) error
	Foreground(ctx context.Context, args []string) error
	Wipe(ctx context.Context, args []string) error
}

const (
	helpLocked   = "Available commands: setup-pin, unlock, status, generate, strength, background, foreground, wipe, exit"
	helpUnlocked = "Available commands: (l)ist, show, add, add-totp, update, delete, search, export, import, " +
		"generate, strength, settings, setup-pin, lock, status, background, foreground, wipe, exit"
)

// lineFeed returns a reader of one input line per call. The underlying read
// only happens on request so command handlers can prompt on the same reader
// between calls. It reports false at end of input or once ctx is done.
func lineFeed(ctx context.Context, r *bufio.Reader) func() (string, bool) {
	type result struct {
		line string
		err  error
	}
	res := make(chan result, 1)
	return func() (string, bool) {
		go func() {
			line, err := r.ReadString('\n')
			res <- result{line, err}
		}()
		select {
		case <-ctx.Done():
			return "", false
		case x := <-res:
			if x.err != nil && x.line == "" {
				return "", false
			}
			return x.line, true
		}
	}
}

// runREPL reads commands until exit, end of input or cancellation and
// dispatches them to a. Handler errors are reported to the user and never
// stop the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, next func() (string, bool)) {
	for {
		printlnFn(fmt.Sprintf("gv (%s)> ", statusFn()))
		line, ok := next()
		if !ok {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn(helpUnlocked)
			} else {
				printlnFn(helpLocked)
			}
		case "setup-pin":
			err = a.SetupPIN(ctx, args)
		case "unlock":
			err = a.Unlock(ctx, args)
		case "lock":
			err = a.Lock(ctx, args)
		case "status":
			err = a.Status(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "add":
			err = a.Add(ctx, args)
		case "add-totp":
			err = a.AddTOTP(ctx, args)
		case "update":
			err = a.Update(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "search":
			err = a.Search(ctx, args)
		case "export":
			err = a.Export(ctx, args)
		case "import":
			err = a.Import(ctx, args)
		case "generate":
			err = a.Generate(ctx, args)
		case "strength":
			err = a.Strength(ctx, args)
		case "settings":
			err = a.Settings(ctx, args)
		case "background":
			err = a.Background(ctx, args)
		case "foreground":
			err = a.Foreground(ctx, args)
		case "wipe":
			err = a.Wipe(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", userMessage(err))
		}
	}
}

// userMessage turns an error into text for the terminal.
func userMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrNotAuthenticated):
		return "vault is locked, run 'unlock' first"
	case errors.Is(err, common.ErrAuthenticationFailed):
		return "authentication failed"
	case errors.Is(err, common.ErrTooManyAttempts):
		return "too many attempts, wait a minute and try again"
	case errors.Is(err, common.ErrNotFound):
		return "no such record"
	default:
		return err.Error()
	}
}
