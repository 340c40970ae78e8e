// Package common carries the guard helpers shared by native modules: the
// pause switch consulted before any state mutation and the per-address usage
// quota applied to borrow-heavy operations.
package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the module is halted. A nil view or an
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
