package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	unlocked bool
	calls    []string
	args     map[string][]string
	fail     map[string]error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return f.fail[name]
}

func (f *fakeExec) isUnlocked() bool { return f.unlocked }
func (f *fakeExec) SetupPIN(_ context.Context, a []string) error {
	return f.record("setup-pin", a)
}
func (f *fakeExec) Unlock(_ context.Context, a []string) error {
	f.unlocked = true
	return f.record("unlock", a)
}
func (f *fakeExec) Lock(_ context.Context, a []string) error {
	f.unlocked = false
	return f.record("lock", a)
}
func (f *fakeExec) Status(_ context.Context, a []string) error  { return f.record("status", a) }
func (f *fakeExec) List(_ context.Context, a []string) error    { return f.record("list", a) }
func (f *fakeExec) Show(_ context.Context, a []string) error    { return f.record("show", a) }
func (f *fakeExec) Add(_ context.Context, a []string) error     { return f.record("add", a) }
func (f *fakeExec) AddTOTP(_ context.Context, a []string) error { return f.record("add-totp", a) }
func (f *fakeExec) Update(_ context.Context, a []string) error  { return f.record("update", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error  { return f.record("delete", a) }
func (f *fakeExec) Search(_ context.Context, a []string) error  { return f.record("search", a) }
func (f *fakeExec) Export(_ context.Context, a []string) error  { return f.record("export", a) }
func (f *fakeExec) Import(_ context.Context, a []string) error  { return f.record("import", a) }
func (f *fakeExec) Generate(_ context.Context, a []string) error {
	return f.record("generate", a)
}
func (f *fakeExec) Strength(_ context.Context, a []string) error {
	return f.record("strength", a)
}
func (f *fakeExec) Settings(_ context.Context, a []string) error {
	return f.record("settings", a)
}
func (f *fakeExec) Background(_ context.Context, a []string) error {
	return f.record("background", a)
}
func (f *fakeExec) Foreground(_ context.Context, a []string) error {
	return f.record("foreground", a)
}
func (f *fakeExec) Wipe(_ context.Context, a []string) error { return f.record("wipe", a) }

func feed(lines ...string) func() (string, bool) {
	return func() (string, bool) {
		if len(lines) == 0 {
			return "", false
		}
		l := lines[0]
		lines = lines[1:]
		return l + "\n", true
	}
}

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	printed := capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, feed(
		"help",
		"unlock",
		"help",
		"",
		"list",
		"l",
		"search mail box",
		"delete abc",
		"import backup.json merge",
		"settings timeout 10",
		"foobar",
		"lock",
		"exit",
		"list",
	))

	assert.Equal(t, []string{"unlock", "list", "list", "search", "delete", "import", "settings", "lock"}, exec.calls)
	assert.Equal(t, []string{"mail", "box"}, exec.args["search"])
	assert.Equal(t, []string{"backup.json", "merge"}, exec.args["import"])
	assert.Contains(t, *printed, helpLocked)
	assert.Contains(t, *printed, helpUnlocked)
	assert.Contains(t, *printed, "Unknown command: foobar")
	assert.Contains(t, *printed, "Bye!")
	assert.Contains(t, *printed, "gv (status)> ")
}

func TestRunREPL_StopsAtEndOfInput(t *testing.T) {
	capturePrintln(t)
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, feed("status"))
	assert.Equal(t, []string{"status"}, exec.calls)
}

func TestRunREPL_ReportsErrors(t *testing.T) {
	printed := capturePrintln(t)
	exec := &fakeExec{fail: map[string]error{
		"list":   fmt.Errorf("list: %w", common.ErrNotAuthenticated),
		"unlock": common.ErrAuthenticationFailed,
		"add":    errors.New("disk full"),
	}}
	runREPL(context.Background(), exec, func() string { return "" }, feed("list", "unlock", "add", "exit"))

	assert.Contains(t, *printed, "Error: vault is locked, run 'unlock' first")
	assert.Contains(t, *printed, "Error: authentication failed")
	assert.Contains(t, *printed, "Error: disk full")
}

func TestLineFeed(t *testing.T) {
	next := lineFeed(context.Background(), rdr("one\ntwo"))
	l, ok := next()
	require.True(t, ok)
	assert.Equal(t, "one\n", l)
	l, ok = next()
	require.True(t, ok)
	assert.Equal(t, "two", l)
	_, ok = next()
	assert.False(t, ok)
}

func TestLineFeed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pr, pw := io.Pipe()
	defer pw.Close()
	next := lineFeed(ctx, bufio.NewReader(pr))
	_, ok := next()
	assert.False(t, ok)
}
