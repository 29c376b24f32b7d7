// Package bridges adapts one bounded context's ports onto another
// context's use cases. Every bridge runs inside the caller's unit of work
// and never opens sessions of its own.
package bridges
