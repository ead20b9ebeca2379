// Package station contains the core domain types of the station-mode
// connection lifecycle.
//
// It defines the typed radio notifications (Event), the live connection
// Status, the one-shot resolution (Outcome) and Transition, the pure
// function that maps (Status, Event) to the next Status and the side
// effects the caller has to perform.
package station
