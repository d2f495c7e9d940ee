// Package eventing broadcasts cache invalidations between processes that share
// a Redis tier.
package eventing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("github.com/agentuity/go-cachespace/eventing")

var propagator = propagation.TraceContext{}

// Headers carries trace context alongside an event.
type Headers map[string]string

func (h Headers) Get(key string) string {
	return h[key]
}

func (h Headers) Set(key string, value string) {
	h[key] = value
}

func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

// Invalidation tells other processes to drop their local copy of Space/Key, or
// of the whole space when All is set.
type Invalidation struct {
	Origin  string  `msgpack:"o"`
	Space   string  `msgpack:"s"`
	Key     string  `msgpack:"k,omitempty"`
	All     bool    `msgpack:"a,omitempty"`
	Headers Headers `msgpack:"h,omitempty"`
}

// Handler is called for every invalidation published by another bus.
type Handler func(ctx context.Context, inv Invalidation)
