package common

import (
	"errors"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is administratively paused. This
// is an operational kill switch distinct from the vault's emergency mode,
// which only halts inflows.
type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a concurrency-safe PauseView backed by a set of paused module
// names.
type Pauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewPauses() *Pauses {
	return &Pauses{paused: make(map[string]bool)}
}

// SetPaused flips the pause flag for a module.
func (p *Pauses) SetPaused(module string, paused bool) {
	if p == nil || module == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = paused
}

// IsPaused satisfies PauseView.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}
