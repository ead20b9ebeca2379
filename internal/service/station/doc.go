// Package station runs the connection state machine of the station radio.
//
// The radio driver reports notifications through Machine.Notify from its own
// context; Machine.Run is the only goroutine that applies them, so the retry
// counter and the live status have a single writer. The supervisor blocks on
// Machine.Wait until the connection resolves as connected or failed.
package station
