// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package events

// Sink receives cycle events.
type Sink interface {
	BroadcastJSON(eventType string, data interface{})
}

type fanout []Sink

func (f fanout) BroadcastJSON(eventType string, data interface{}) {
	for _, s := range f {
		s.BroadcastJSON(eventType, data)
	}
}

// Fanout returns a Sink that forwards every event to each non-nil sink in
// order. It returns nil when no sink is given.
func Fanout(sinks ...Sink) Sink {
	out := make(fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
