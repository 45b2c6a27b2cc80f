// Package observability wires structured logging and Prometheus metrics
// for the skiff binaries.
package observability
