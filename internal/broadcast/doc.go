// Package broadcast implements the connection registry and fan-out using the actor pattern.
//
// A single goroutine owns the set of live clients and processes register, unregister and
// broadcast commands in order, so fan-out never observes a half-mutated set. Each client has
// its own writer goroutine with a bounded queue; a full queue evicts the client instead of
// stalling delivery to the rest.
package broadcast
