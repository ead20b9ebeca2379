// Package config defines the controller settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate fills the firmware defaults: four
// reconnect attempts, pool.ntp.org in the PST8PDT zone, the pump on line 5
// with five seconds on and five seconds off, and a ten-second clock report.
package config
