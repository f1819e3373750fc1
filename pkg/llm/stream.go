package llm

import (
	"context"
	"strings"
)

type EventKind int

const (
	EventFragment EventKind = iota
	EventError
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventFragment:
		return "fragment"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

type StreamEvent struct {
	Kind EventKind
	Text string
	Err  error
}

func Fragment(text string) StreamEvent { return StreamEvent{Kind: EventFragment, Text: text} }
func Failed(err error) StreamEvent     { return StreamEvent{Kind: EventError, Err: err} }
func Done() StreamEvent                { return StreamEvent{Kind: EventDone} }

// Emitter writes events to a stream channel until the consumer's context is gone.
type Emitter struct {
	ctx context.Context
	out chan<- StreamEvent
}

func NewEmitter(ctx context.Context, out chan<- StreamEvent) *Emitter {
	return &Emitter{ctx: ctx, out: out}
}

// Send reports false once the context is cancelled; the producer must stop then.
func (e *Emitter) Send(ev StreamEvent) bool {
	if e.ctx.Err() != nil {
		return false
	}
	select {
	case <-e.ctx.Done():
		return false
	case e.out <- ev:
		return true
	}
}

// Collect drains a stream into the full text. It is a convenience for callers that
// do not need incremental output.
func Collect(events <-chan StreamEvent) (string, error) {
	var b strings.Builder
	for ev := range events {
		switch ev.Kind {
		case EventFragment:
			b.WriteString(ev.Text)
		case EventError:
			return b.String(), ev.Err
		case EventDone:
			return b.String(), nil
		}
	}
	return b.String(), context.Canceled
}
