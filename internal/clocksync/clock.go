// Package clocksync gives display tiles a view of the server clock.
//
// The server answers every "time" request with its current time in
// milliseconds. Tiles sample the round trip periodically and keep the
// offset of the fastest recent round trip.
package clocksync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Ko-stant/tilewall/internal/protocol"
)

const (
	// DefaultInterval is how often a tile asks the server for its time.
	DefaultInterval = 10 * time.Second
	sampleWindow    = 8
)

// Responder produces the server side of the time protocol.
type Responder struct {
	now func() time.Time
}

func NewResponder() *Responder {
	return &Responder{now: time.Now}
}

// Reply is the payload for a "time" response.
func (r *Responder) Reply() int64 {
	return r.now().UnixMilli()
}

// Sender delivers a request to the server.
type Sender interface {
	Send(ctx context.Context, eventType string, payload any) error
}

type sample struct {
	rtt    time.Duration
	offset time.Duration
}

// Clock estimates the server clock from request/reply samples.
type Clock struct {
	mu      sync.Mutex
	samples []sample
	offset  time.Duration
	// pending is when the outstanding request was sent; zero when none.
	pending time.Time

	sender   Sender
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewClock(sender Sender) *Clock {
	return &Clock{
		sender:   sender,
		interval: DefaultInterval,
		now:      time.Now,
	}
}

// Start requests the time immediately and then every interval until Stop
// or ctx is done.
func (c *Clock) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.request(ctx)
		for {
			select {
			case <-ticker.C:
				c.request(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Clock) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// request replaces any outstanding request, so a reply the server never
// sent cannot shift later pairings.
func (c *Clock) request(ctx context.Context) {
	sent := c.now()
	c.mu.Lock()
	c.pending = sent
	c.mu.Unlock()

	if err := c.sender.Send(ctx, protocol.EventTime, nil); err != nil {
		log.Printf("clocksync: time request failed: %v", err)
		c.mu.Lock()
		if c.pending.Equal(sent) {
			c.pending = time.Time{}
		}
		c.mu.Unlock()
	}
}

// HandleReply pairs a server reply with the newest outstanding request.
func (c *Clock) HandleReply(serverMillis int64) {
	received := c.now()
	c.mu.Lock()
	if c.pending.IsZero() {
		c.mu.Unlock()
		log.Printf("clocksync: unsolicited time reply")
		return
	}
	sent := c.pending
	c.pending = time.Time{}
	c.mu.Unlock()

	c.Sample(sent, serverMillis, received)
}

// Sample folds one round trip into the estimate. The server time is assumed
// to be taken halfway through the round trip.
func (c *Clock) Sample(sent time.Time, serverMillis int64, received time.Time) {
	rtt := received.Sub(sent)
	if rtt < 0 {
		return
	}
	server := time.UnixMilli(serverMillis)
	offset := server.Add(rtt / 2).Sub(received)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample{rtt: rtt, offset: offset})
	if len(c.samples) > sampleWindow {
		c.samples = c.samples[len(c.samples)-sampleWindow:]
	}
	best := c.samples[0]
	for _, s := range c.samples[1:] {
		if s.rtt < best.rtt {
			best = s
		}
	}
	c.offset = best.offset
}

// Offset is the current estimate of server time minus local time.
func (c *Clock) Offset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Now is the corrected, server-aligned time.
func (c *Clock) Now() time.Time {
	return c.now().Add(c.Offset())
}

// Until is the time left before a server deadline, never negative.
func (c *Clock) Until(deadline time.Time) time.Duration {
	d := deadline.Sub(c.Now())
	if d < 0 {
		return 0
	}
	return d
}
