// Package health exposes the controller status over the standard gRPC
// health checking protocol.
package health
