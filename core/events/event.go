package events

// Event is a single marketplace occurrence. Each module tags its payloads with
// the type constants it defines (market.listed, market.sold, ...).
type Event interface {
	EventType() string
}

// Emitter receives events from the engines. Implementations fan them out to
// metrics, the websocket stream, or capture them in tests.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event. Engines fall back to it when no emitter is
// configured.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}
