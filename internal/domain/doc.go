// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (update.go, message.go, errors.go) hold the shared value types
// and the small interfaces consumed across packages. No implementation code, just contracts.
package domain
