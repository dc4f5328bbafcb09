package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  map[string][]string
	fail  map[string]error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return f.fail[name]
}

func (f *fakeExec) isLoggedIn(context.Context) bool { return f.loggedIn }
func (f *fakeExec) Signup(context.Context) error    { return f.record("signup", nil) }
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login", nil)
}
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout", nil)
}
func (f *fakeExec) WhoAmI(context.Context) error  { return f.record("whoami", nil) }
func (f *fakeExec) AddNote(context.Context) error { return f.record("add-note", nil) }
func (f *fakeExec) AddLink(context.Context) error { return f.record("add-link", nil) }
func (f *fakeExec) List(_ context.Context, a []string) error {
	return f.record("list", a)
}
func (f *fakeExec) Show(_ context.Context, a []string) error   { return f.record("show", a) }
func (f *fakeExec) Tag(_ context.Context, a []string) error    { return f.record("tag", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error { return f.record("delete", a) }
func (f *fakeExec) Category(_ context.Context, a []string) error {
	return f.record("category", a)
}
func (f *fakeExec) Upload(_ context.Context, a []string) error { return f.record("upload", a) }
func (f *fakeExec) URL(_ context.Context, a []string) error    { return f.record("url", a) }
func (f *fakeExec) Stats(context.Context) error                { return f.record("stats", nil) }

func status(context.Context) string { return "" }

func TestRunREPL_DispatchesCommands(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"signup",
		"login",
		"help",
		"whoami",
		"add-note",
		"add-link",
		"l go",
		"list",
		"show 1234",
		"tag 1234 a b",
		"delete 1234",
		"category Work Stuff",
		"upload /tmp/x.png",
		"url x.png",
		"stats",
		"",
		"logout",
		"exit",
		"login",
	}, "\n") + "\n"

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, status, bufio.NewReader(strings.NewReader(input)), &out)

	assert.Equal(t, []string{
		"signup", "login", "whoami", "add-note", "add-link", "list", "list",
		"show", "tag", "delete", "category", "upload", "url", "stats", "logout",
	}, exec.calls)
	assert.Empty(t, exec.args["list"])
	assert.Equal(t, []string{"1234", "a", "b"}, exec.args["tag"])
	assert.Equal(t, []string{"Work", "Stuff"}, exec.args["category"])

	text := out.String()
	assert.Contains(t, text, "Available commands: signup, login, stats, exit")
	assert.Contains(t, text, "Available commands: whoami")
	assert.Contains(t, text, "Bye!")
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	exec := &fakeExec{fail: map[string]error{
		"login": common.NewError(common.KindCredential, "invalid login credentials", common.ErrInvalidCredentials),
		"show":  errors.New("boom"),
	}}
	var out bytes.Buffer
	runREPL(context.Background(), exec, status, bufio.NewReader(strings.NewReader("login\nshow 1\nfoo\nquit\n")), &out)

	assert.Equal(t, []string{"login", "show"}, exec.calls)
	assert.Contains(t, out.String(), "error: invalid login credentials")
	assert.Contains(t, out.String(), "error: boom")
	assert.Contains(t, out.String(), "Unknown command: foo")
}

func TestRunREPL_EOFStops(t *testing.T) {
	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func(context.Context) string { return "(a@b.c)" },
		bufio.NewReader(strings.NewReader("whoami")), &out)

	assert.Equal(t, []string{"whoami"}, exec.calls)
	assert.True(t, strings.HasPrefix(out.String(), "bb(a@b.c)> "))
}

func TestRunREPL_UsesPrintSeam(t *testing.T) {
	orig := printlnFn
	var printed []string
	printlnFn = func(_ io.Writer, a ...any) (int, error) {
		for _, v := range a {
			if s, ok := v.(string); ok {
				printed = append(printed, s)
			}
		}
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })

	runREPL(context.Background(), &fakeExec{}, status, bufio.NewReader(strings.NewReader("exit\n")), io.Discard)
	require.Equal(t, []string{"Bye!"}, printed)
}
