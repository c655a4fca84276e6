package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema.
type OrderEventRow struct {
	EventID    string             `bigquery:"event_id"`
	EventType  string             `bigquery:"event_type"`
	OccurredAt time.Time          `bigquery:"occurred_at"`
	OrderID    *int64             `bigquery:"order_id"`
	CartID     *int64             `bigquery:"cart_id"`
	Code       *string            `bigquery:"code"`
	UserID     *int64             `bigquery:"user_id"`
	ItemCount  int64              `bigquery:"item_count"`
	TotalCents int64              `bigquery:"total_cents"`
	Payload    cbigquery.NullJSON `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver. The event id doubles as the insert id
// so a redelivered message does not produce a second row.
func (r *OrderEventRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":    r.EventID,
		"event_type":  r.EventType,
		"occurred_at": r.OccurredAt,
		"item_count":  r.ItemCount,
		"total_cents": r.TotalCents,
	}
	if r.OrderID != nil {
		row["order_id"] = *r.OrderID
	}
	if r.CartID != nil {
		row["cart_id"] = *r.CartID
	}
	if r.Code != nil {
		row["code"] = *r.Code
	}
	if r.UserID != nil {
		row["user_id"] = *r.UserID
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}
