// Package status persists the controller status snapshot.
//
// The FileRepository writes the snapshot as protobuf JSON so later
// disconnections are observable from outside the process.
package status
