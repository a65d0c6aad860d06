package common

import (
	"errors"
	"sync"
)

var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call")
)

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

// PauseSet is a PauseView backed by a static map, populated from
// configuration or toggled by tests.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewPauseSet() *PauseSet {
	return &PauseSet{paused: make(map[string]bool)}
}

func (p *PauseSet) SetPaused(module string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = paused
}

func (p *PauseSet) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// LockSet tracks in-flight mutating operations keyed by an opaque identifier.
// A second acquisition of a held key fails with ErrReentrantCall, which shields
// engines against callers re-entering during an outbound value transfer.
type LockSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLockSet() *LockSet {
	return &LockSet{held: make(map[string]struct{})}
}

// Acquire claims the key for the duration of an operation.
func (l *LockSet) Acquire(key string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return ErrReentrantCall
	}
	l.held[key] = struct{}{}
	return nil
}

// Release frees the key. Releasing an unheld key is a no-op.
func (l *LockSet) Release(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
