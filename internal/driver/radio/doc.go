// Package radio provides station-mode radio drivers.
//
// Drivers never block in Connect: the attempt runs in the background and its
// result arrives as a Disconnected or AddressAcquired notification.
package radio
