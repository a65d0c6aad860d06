package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nftmarket/core/events"
	marketpkg "nftmarket/native/market"
)

var marketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nftmarket",
	Subsystem: "market",
	Name:      "events_total",
	Help:      "Marketplace events emitted, by event type.",
}, []string{"type"})

var rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nftmarket",
	Subsystem: "rpc",
	Name:      "requests_total",
	Help:      "JSON-RPC requests served, by method and outcome.",
}, []string{"method", "outcome"})

// ObserveRPC records a served JSON-RPC request.
func ObserveRPC(method, outcome string) {
	rpcRequests.WithLabelValues(method, outcome).Inc()
}

// EventObserver counts marketplace events while forwarding them to the wrapped
// emitter. It lets the metrics pipeline ride the same emission path as RPC
// subscribers.
type EventObserver struct {
	next events.Emitter
}

// NewEventObserver wraps the supplied emitter; nil falls back to a no-op sink.
func NewEventObserver(next events.Emitter) *EventObserver {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &EventObserver{next: next}
}

// Emit implements events.Emitter.
func (o *EventObserver) Emit(evt events.Event) {
	if o == nil || evt == nil {
		return
	}
	if t := evt.EventType(); t != "" {
		marketEvents.WithLabelValues(t).Inc()
	}
	o.next.Emit(evt)
}

var _ events.Emitter = (*EventObserver)(nil)

// Referenced so the label set stays aligned with the engine's event constants.
var knownEventTypes = []string{
	marketpkg.EventTypeListed,
	marketpkg.EventTypeUnlisted,
	marketpkg.EventTypeSold,
	marketpkg.EventTypeAuctionStarted,
	marketpkg.EventTypeBidPlaced,
	marketpkg.EventTypeBidWithdrawn,
	marketpkg.EventTypeAuctionEnded,
	marketpkg.EventTypeItemReclaimed,
	marketpkg.EventTypeRoyaltyUpdated,
}

func init() {
	for _, t := range knownEventTypes {
		marketEvents.WithLabelValues(t)
	}
}
