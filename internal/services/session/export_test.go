// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import "time"

// WithClock returns a copy that reads the time from now. The codec's own
// signature timestamp still uses the wall clock.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}
