package reminder

import (
	"fmt"
	"sync"
	"time"
)

// Key identifies one occurrence for notification tracking:
// one scheduled time of one medication on one day.
type Key struct {
	Day           string
	MedicationID  string
	ScheduledTime string
}

// String renders the key as day|medicationID|HH:MM.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Day, k.MedicationID, k.ScheduledTime)
}

// Tracker remembers when each key was last notified and whether it is
// snoozed. It lives as long as a polling session.
type Tracker struct {
	mu           sync.Mutex
	lastNotified map[Key]time.Time
	snoozed      map[Key]time.Time

	// settled holds keys the user resolved from this client. They stay
	// silent until the ledger reports them resolved or the day is purged,
	// so a pass that fetched before the write cannot re-notify them.
	settled map[Key]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		lastNotified: make(map[Key]time.Time),
		snoozed:      make(map[Key]time.Time),
		settled:      make(map[Key]struct{}),
	}
}

// Last returns when key was last notified, or the zero time.
func (t *Tracker) Last(key Key) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastNotified[key]
}

// MarkNotified records a notification for key at now.
func (t *Tracker) MarkNotified(key Key, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastNotified[key] = now
}

// Clear forgets key entirely, including any snooze. It is called once the
// ledger shows the dose resolved.
func (t *Tracker) Clear(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastNotified, key)
	delete(t.snoozed, key)
	delete(t.settled, key)
}

// Settle records that key was resolved locally. Notification history is
// dropped and the key does not fire again until Clear, PurgeStale or Reset.
func (t *Tracker) Settle(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastNotified, key)
	delete(t.snoozed, key)
	t.settled[key] = struct{}{}
}

// Settled reports whether key was resolved locally and the ledger has not
// caught up yet.
func (t *Tracker) Settled(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.settled[key]
	return ok
}

// Snooze suppresses notifications for key until the given instant.
func (t *Tracker) Snooze(key Key, until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snoozed[key] = until
}

// SnoozedUntil returns the snooze deadline for key, or the zero time.
func (t *Tracker) SnoozedUntil(key Key) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snoozed[key]
}

// decide applies the fire rule for a due key atomically. It returns whether
// to notify now and whether this would be a repeat notification.
func (t *Tracker) decide(key Key, now time.Time, repeat time.Duration) (fire, isRepeat bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.settled[key]; ok {
		return false, false
	}

	last, notified := t.lastNotified[key]

	if until, ok := t.snoozed[key]; ok {
		if now.Before(until) {
			return false, notified
		}
		delete(t.snoozed, key)
		t.lastNotified[key] = now
		return true, notified
	}

	if !notified || now.Sub(last) >= repeat {
		t.lastNotified[key] = now
		return true, notified
	}
	return false, true
}

// PurgeStale drops every key that does not belong to today and returns how
// many were removed.
func (t *Tracker) PurgeStale(today string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k := range t.lastNotified {
		if k.Day != today {
			delete(t.lastNotified, k)
			removed++
		}
	}
	for k := range t.snoozed {
		if k.Day != today {
			delete(t.snoozed, k)
		}
	}
	for k := range t.settled {
		if k.Day != today {
			delete(t.settled, k)
		}
	}
	return removed
}

// Reset discards all tracking state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastNotified = make(map[Key]time.Time)
	t.snoozed = make(map[Key]time.Time)
	t.settled = make(map[Key]struct{})
}

// Len returns the number of keys with a recorded notification.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastNotified)
}
