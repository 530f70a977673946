// Package cli provides the interactive memosync command-line client.
//
// It wires configuration, the local store, the account services and the sync
// engine behind a line-oriented REPL. Every command works offline against
// the local store; a background watcher probes the server and fires
// timer-triggered syncs while it is reachable.
//
// The REPL is started with App.Run, which blocks until the user exits or the
// context is cancelled. See runREPL for the command set.
package cli
