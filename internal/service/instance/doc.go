// Package instance guards against two controllers driving the same outputs.
package instance
