// Package supervisor starts the controller: one-time initialization, a
// blocking connection start, then every loop concurrently whatever the
// connection outcome was.
package supervisor
