// Package session drives one evaluation from submitted script text to
// serialized solids, and runs many evaluations on a bounded worker pool.
//
// An evaluation owns its builder, graph, resolver and kernel scope; nothing
// mutable is shared between evaluations. Each evaluation emits zero or
// more log events followed by exactly one terminal event, either a result
// or an error.
package session
