package persistence

import (
	"sync/atomic"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

// OperationLock is the advisory flag set for the duration of every
// foreground persistence action. Autosave reads it and never sets it.
type OperationLock struct {
	held atomic.Bool
}

// TryAcquire sets the lock and reports whether it was free.
func (l *OperationLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release clears the lock.
func (l *OperationLock) Release() {
	l.held.Store(false)
}

// Held reports whether a foreground action is running.
func (l *OperationLock) Held() bool {
	return l.held.Load()
}

// Do runs fn while holding the lock and always releases it, including when
// fn panics. A held lock returns services.ErrBusy without running fn.
func (l *OperationLock) Do(op string, fn func() error) error {
	if !l.TryAcquire() {
		return services.Wrap(services.ErrBusy, "persistence", op, "another save or load is in progress", nil)
	}
	defer l.Release()
	return fn()
}
