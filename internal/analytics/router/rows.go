package router

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/wardrobe-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/wardrobe-backend/internal/analytics/writer"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

func orderPlacedRow(envelope types.Envelope, event *payloads.OrderPlacedEvent) (types.OrderEventRow, error) {
	row, err := baseRow(envelope, event)
	if err != nil {
		return row, err
	}
	if !event.PlacedAt.IsZero() {
		row.OccurredAt = event.PlacedAt.UTC()
	}
	// An order keeps the id of the cart it was placed from.
	row.OrderID = optionalID(event.OrderID)
	row.CartID = optionalID(event.OrderID)
	row.Code = optionalText(event.Code)
	row.UserID = optionalID(event.UserID)
	row.ItemCount = int64(event.ItemCount)
	row.TotalCents = event.TotalCents
	return row, nil
}

// Merges carry no totals; item_count is the number of guest lines folded in.
func cartMergedRow(envelope types.Envelope, event *payloads.CartMergedEvent) (types.OrderEventRow, error) {
	row, err := baseRow(envelope, event)
	if err != nil {
		return row, err
	}
	row.CartID = optionalID(event.UserCartID)
	row.UserID = optionalID(event.UserID)
	row.ItemCount = int64(event.LinesMerged)
	return row, nil
}

func baseRow(envelope types.Envelope, event any) (types.OrderEventRow, error) {
	raw, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.OrderEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
		Payload:    raw,
	}, nil
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func optionalText(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
