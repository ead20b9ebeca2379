// Package clock publishes the controller's wall-clock time.
//
// WallClock is written by the Syncer only and read by any number of
// actuator loops; every write swaps a complete snapshot atomically. Until
// the first successful synchronization readers observe the local clock with
// no correction, and if the time source is never reached they keep doing so
// without any error being raised.
package clock
