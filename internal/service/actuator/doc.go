// Package actuator runs the scheduled output loops.
//
// Pulse is the fixed-period loop used for the pump: on for the active
// duration, off for the idle duration, with plain relative sleeps. Periodic
// is the wall-clock loop used for the indicator and the clock report: each
// wake instant is the previous scheduled instant plus the period, so time
// spent in the loop body never shifts the schedule.
//
// Neither loop looks at the station connection. They run until their
// context is canceled.
package actuator
