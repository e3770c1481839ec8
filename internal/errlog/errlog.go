// Package errlog keeps the most recent server and client errors in memory
// for operational visibility.
package errlog

import (
	"log"
	"sync"
	"time"

	"github.com/Ko-stant/tilewall/internal/protocol"
)

const (
	OriginServer = "SERVER"
	OriginClient = "CLIENT"

	// DefaultCapacity is how many records are retained.
	DefaultCapacity = 100
)

// Recorder is a bounded ring of error records. The oldest record is evicted
// first once capacity is reached.
type Recorder struct {
	mu       sync.Mutex
	records  []protocol.ErrorRecord
	next     int
	full     bool
	now      func() time.Time
	capacity int
}

func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		records:  make([]protocol.ErrorRecord, capacity),
		now:      time.Now,
		capacity: capacity,
	}
}

// Record logs a server-side error and stores it.
func (r *Recorder) Record(namespace string, err error) {
	if err == nil {
		return
	}
	log.Printf("%s: %v", namespace, err)
	r.push(protocol.ErrorRecord{
		Origin:    OriginServer,
		Namespace: namespace,
		Message:   err.Error(),
	})
}

// RecordClient stores an error reported by a display client.
func (r *Recorder) RecordClient(report protocol.ErrorReport) {
	log.Printf("client error in %s: %s", report.Namespace, report.Message)
	r.push(protocol.ErrorRecord{
		Origin:    OriginClient,
		Namespace: report.Namespace,
		Message:   report.Message,
		Stack:     report.Stack,
	})
}

func (r *Recorder) push(rec protocol.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Timestamp = r.now()
	r.records[r.next] = rec
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns a copy of the retained records, oldest first.
func (r *Recorder) Recent() []protocol.ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]protocol.ErrorRecord, r.next)
		copy(out, r.records[:r.next])
		return out
	}
	out := make([]protocol.ErrorRecord, 0, r.capacity)
	out = append(out, r.records[r.next:]...)
	out = append(out, r.records[:r.next]...)
	return out
}
