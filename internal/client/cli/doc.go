// Package cli provides the interactive sekure command-line client.
//
// It wires configuration, local storage, the backing-store client and the
// application services, then runs a REPL. Login falls back to the offline
// verifier when the server is unreachable, and a session started in one
// process can be resumed by the next through $SEKURE_SESSION.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
