// Package settings keeps controller state that must survive a restart in a
// local sqlite database: the boot counter and the last time sync.
package settings
