package service

import (
	"sync"
	"time"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

// fakeClock is a settable clock shared by the service tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// auditSpy captures audit entries synchronously.
type auditSpy struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *auditSpy) Record(entry models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditSpy) actions() []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditAction, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}
