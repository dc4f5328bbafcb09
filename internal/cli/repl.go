package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Fprintln

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	AddNote(ctx context.Context) error
	AddLink(ctx context.Context) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Tag(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Category(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	URL(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop.
//
// It reads a line from reader, parses the first token as the command and the
// rest as its arguments, and dispatches to methods on 'a'. Errors returned by
// handlers are printed and the loop continues. The loop exits on EOF or when
// the user types "exit" or "quit".
//
//	Not logged in:
//	  - help           - show available commands
//	  - signup         - create an account
//	  - login          - sign in
//	  - stats          - show counters
//	  - exit | quit    - leave the program
//
//	Logged in, additionally:
//	  - whoami         - show the signed-in user
//	  - add-note       - save a note
//	  - add-link       - save a link
//	  - upload <file>  - store a local file and save it as an item
//	  - (l)ist [tag]   - list items, optionally with a tag
//	  - show <id>      - show one item
//	  - tag <id> <t..> - add tags to an item
//	  - delete <id>    - delete an item
//	  - category [n]   - list categories, or create one named n
//	  - url <file>     - print a link to an uploaded file
//	  - logout         - sign out
func runREPL(ctx context.Context, a execIface, statusFn func(ctx context.Context) string, reader *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "bb%s> ", statusFn(ctx))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn(out, "Available commands: whoami, add-note, add-link, upload, (l)ist, show, tag, delete, category, url, stats, logout, exit")
			} else {
				printlnFn(out, "Available commands: signup, login, stats, exit")
			}

		case "signup", "register":
			cmdErr = a.Signup(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "whoami":
			cmdErr = a.WhoAmI(ctx)
		case "add-note":
			cmdErr = a.AddNote(ctx)
		case "add-link":
			cmdErr = a.AddLink(ctx)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "tag":
			cmdErr = a.Tag(ctx, args)
		case "delete":
			cmdErr = a.Delete(ctx, args)
		case "category":
			cmdErr = a.Category(ctx, args)
		case "upload":
			cmdErr = a.Upload(ctx, args)
		case "url":
			cmdErr = a.URL(ctx, args)
		case "stats":
			cmdErr = a.Stats(ctx)

		case "exit", "quit":
			printlnFn(out, "Bye!")
			return

		default:
			printlnFn(out, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(out, "error:", describe(cmdErr))
		}
		if err != nil {
			return
		}
	}
}
