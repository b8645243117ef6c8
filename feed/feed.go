// Package feed fans one producer's events out to channel subscribers.
package feed

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const publishTimeout = 200 * time.Millisecond

type subscriber[E any] struct {
	ch      chan E
	comment string
}

// Publisher is the sending half of a feed. Publish returns immediately;
// delivery runs on its own goroutine with a per-subscriber timeout.
type Publisher[E any] struct {
	m *Mux[E]
}

func (p *Publisher[E]) Publish(e E) {
	go p.m.send(e)
}

// New returns the connected halves of a feed. name labels the feed in
// stall warnings.
func New[E any](name string) (*Publisher[E], *Mux[E]) {
	m := &Mux[E]{name: name}
	return &Publisher[E]{m: m}, m
}

// Mux is the receiving half: subscribers register a channel and get every
// event published after that.
type Mux[E any] struct {
	name string
	mu   sync.Mutex
	subs []subscriber[E]
}

// cleanup keeps at most one vacated slot, at the end. mu must be held.
func (m *Mux[E]) cleanup() {
	last := len(m.subs) - 1
	if m.subs[last].ch == nil {
		return
	}
	for i, sub := range m.subs {
		if sub.ch == nil {
			m.subs[i], m.subs[last] = m.subs[last], subscriber[E]{}
			return
		}
	}
}

// Subscribe registers ch. comment names the subscriber in stall warnings.
func (m *Mux[E]) Subscribe(comment string, ch chan E) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := subscriber[E]{ch: ch, comment: comment}
	last := len(m.subs) - 1
	if last >= 0 && m.subs[last].ch == nil {
		m.subs[last] = sub
		m.cleanup()
	} else {
		m.subs = append(m.subs, sub)
	}
}

// Unsubscribe removes ch. Unsubscribing a channel that is not registered
// is a caller bug and panics.
func (m *Mux[E]) Unsubscribe(ch chan E) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.subs, func(sub subscriber[E]) bool { return sub.ch == ch })
	if i == -1 {
		panic("feed: already unsubscribed")
	}
	m.subs[i] = subscriber[E]{}
	m.cleanup()
}

func (m *Mux[E]) send(e E) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.ch == nil {
			continue
		}
		select {
		case sub.ch <- e:
		case <-time.After(publishTimeout):
			zap.S().Warnw("feed subscriber stalled, event dropped",
				"feed", m.name, "subscriber", sub.comment)
		}
	}
}
