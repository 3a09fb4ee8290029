// Package app wires the engine together: it builds the registry, loads a
// network file into a Network, starts a local session and exposes the
// network through a control server, a file watcher, scheduled re-runs and
// an optional render-host bridge. It is decoupled from any specific
// entrypoint like the CLI.
package app
