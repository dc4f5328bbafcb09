// Package cli provides the interactive brainbox command-line client.
//
// It wires configuration, the host byte store and the local data layer, and
// runs a REPL for saving and browsing notes, links and files:
//
//   - signup / login / logout / whoami
//   - add-note / add-link / upload
//   - list [tag] / show <id> / tag <id> <tag...> / delete <id>
//   - category [name] / url <file>
//   - stats
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
