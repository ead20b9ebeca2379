// Package output drives digital output lines.
//
// A Driver configures a line once and then sets its level. Setting a level
// never fails from the caller's point of view; backends that talk to real
// hardware log their errors instead.
package output
