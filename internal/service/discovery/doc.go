// Package discovery advertises the controller on the local network over mDNS.
package discovery
