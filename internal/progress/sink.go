package progress

import "context"

// Sink consumes batches of progress events. Implementations must honor ctx
// deadlines; a Hub calls Consume from a single goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so
// fetchers and the orchestrator stay agnostic about buffering.
type Emitter interface {
	Emit(evt Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}
