package session

import "github.com/GriffinCanCode/livepen/internal/domain/bridge"

// DefaultLogCapacity is the number of diagnostic records kept per session.
const DefaultLogCapacity = 100

// Log is a fixed-capacity FIFO of diagnostic records. Appending to a full
// log evicts the oldest record. Not safe for concurrent use.
type Log struct {
	records []bridge.Record
	head    int // index of the oldest record
	size    int
}

// NewLog creates a log holding at most capacity records. The capacity can
// be lowered but never raised above DefaultLogCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 || capacity > DefaultLogCapacity {
		capacity = DefaultLogCapacity
	}
	return &Log{records: make([]bridge.Record, capacity)}
}

// Append adds r and reports whether the oldest record was evicted.
func (l *Log) Append(r bridge.Record) bool {
	capacity := len(l.records)
	if l.size < capacity {
		l.records[(l.head+l.size)%capacity] = r
		l.size++
		return false
	}
	l.records[l.head] = r
	l.head = (l.head + 1) % capacity
	return true
}

// Records returns a copy of the log, oldest first.
func (l *Log) Records() []bridge.Record {
	out := make([]bridge.Record, l.size)
	for i := range out {
		out[i] = l.records[(l.head+i)%len(l.records)]
	}
	return out
}

// Len returns the number of records held.
func (l *Log) Len() int { return l.size }

// Cap returns the capacity.
func (l *Log) Cap() int { return len(l.records) }

// Clear empties the log.
func (l *Log) Clear() {
	clear(l.records)
	l.head = 0
	l.size = 0
}
