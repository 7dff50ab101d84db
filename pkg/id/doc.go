// Package id provides compact, monotonically increasing identifiers used to
// tag sessions in logs and stats.
//
// # Format
//
// An ID is a uint64: the high 44 bits carry the Unix time in milliseconds and
// the low 20 bits a per-millisecond sequence. Numeric order is creation order.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next ID.
//
// Usage
//
//	g := id.NewGenerator()
//	sid := g.Next()
//	s := sid.String() // "s-" + 16 hex digits
package id
