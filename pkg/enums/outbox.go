package enums

import "slices"

// OutboxAggregateType names the aggregate an outbox event is about.
type OutboxAggregateType string

const (
	AggregateCart  OutboxAggregateType = "cart"
	AggregateOrder OutboxAggregateType = "order"
)

var aggregateTypes = []OutboxAggregateType{AggregateCart, AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", aggregateTypes, value)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOrderPlaced OutboxEventType = "order_placed"
	EventCartMerged  OutboxEventType = "cart_merged"
)

var eventTypes = []OutboxEventType{EventOrderPlaced, EventCartMerged}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", eventTypes, value)
}
