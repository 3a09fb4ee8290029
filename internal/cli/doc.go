// Package cli builds the dataflowgo command tree: run, validate, modules,
// serve and runs. It turns flags and DATAFLOW_* environment variables into an
// app.Config and maps every failure onto an ExitError carrying the process
// exit code.
package cli
