package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type schemaKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry holds versioned payload decoders for subscribers.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[schemaKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[schemaKey]decoderFunc{}}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mu.Lock()
	r.decoders[schemaKey{eventType, version}] = decoder
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[schemaKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder for %s v%d", eventType, version)
	}
	return decode(payload)
}

// JSONDecoder unmarshals into a fresh value from factory on every call.
func JSONDecoder(factory func() any) decoderFunc {
	return func(payload json.RawMessage) (any, error) {
		v := factory()
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
