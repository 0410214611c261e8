// Package app provides the application service layer.
//
// Relay turns bus messages into state updates and client frames and answers the status
// queries. It sits between the bus subscriber, the HTTP handlers and the broadcaster and
// depends on domain interfaces, not concrete implementations.
package app
