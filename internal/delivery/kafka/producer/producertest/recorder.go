// Package producertest provides an in-memory producer for tests.
package producertest

import (
	"context"
	"sync"

	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
)

// Recorder records every published event. Set Err to make publishes fail.
type Recorder struct {
	mu          sync.Mutex
	Err         error
	Requests    []kafka.TicketLinkRequestEvent
	Results     []kafka.TicketLinkResultEvent
	DeadLetters []kafka.DeadLetterEvent
}

func (r *Recorder) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

func (r *Recorder) PublishTicketLinkRequest(_ context.Context, event kafka.TicketLinkRequestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Requests = append(r.Requests, event)
	return nil
}

func (r *Recorder) PublishTicketLinkResult(_ context.Context, event kafka.TicketLinkResultEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Results = append(r.Results, event)
	return nil
}

func (r *Recorder) PublishDeadLetter(_ context.Context, event kafka.DeadLetterEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.DeadLetters = append(r.DeadLetters, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) RequestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Requests)
}

func (r *Recorder) ResultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Results)
}

func (r *Recorder) DeadLetterCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.DeadLetters)
}

// LastResult returns the most recent result event.
func (r *Recorder) LastResult() (kafka.TicketLinkResultEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Results) == 0 {
		return kafka.TicketLinkResultEvent{}, false
	}
	return r.Results[len(r.Results)-1], true
}
