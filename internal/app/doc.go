// Package app wires application dependencies for the skiff binaries.
//
// It builds the concrete stores, logging and metrics handles, and the
// base transport configuration from Config, exposing them via the Wire
// struct for commands to use.
package app
