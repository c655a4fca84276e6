package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/wardrobe-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/wardrobe-backend/pkg/bigquery"
)

const (
	attemptsDefault = 3
	firstWait       = 250 * time.Millisecond
	longestWait     = 2 * time.Second
)

// Config tunes the order events writer. Zero values pick the defaults above.
type Config struct {
	// OrderEventsTable overrides the table configured on the client.
	OrderEventsTable string
	// BatchSize rows are buffered before an insert; 1 writes every row.
	BatchSize int
	Attempts  int
	FirstWait time.Duration
	MaxWait   time.Duration
}

type rowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter appends order event rows to BigQuery.
type BigQueryWriter struct {
	client   rowInserter
	table    string
	batch    int
	attempts int
	first    time.Duration
	max      time.Duration

	pending []types.OrderEventRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("writer: bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		table = client.OrderEventsTable()
	}
	if table == "" {
		return nil, errors.New("writer: order events table is required")
	}

	w := &BigQueryWriter{
		client:   client,
		table:    table,
		batch:    max(cfg.BatchSize, 1),
		attempts: cfg.Attempts,
		first:    cfg.FirstWait,
		max:      cfg.MaxWait,
	}
	if w.attempts <= 0 {
		w.attempts = attemptsDefault
	}
	if w.first <= 0 {
		w.first = firstWait
	}
	if w.max <= 0 {
		w.max = longestWait
	}
	w.max = max(w.max, w.first)
	return w, nil
}

// InsertOrderEvent queues row and writes the queue once it reaches the batch size.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.pending = append(w.pending, row)
	if len(w.pending) < w.batch {
		return nil
	}
	return w.Flush(ctx)
}

// Flush writes whatever is queued. The queue is kept on failure.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, 0, len(w.pending))
	for i := range w.pending {
		rows = append(rows, &w.pending[i])
	}
	if err := w.insert(ctx, rows); err != nil {
		return err
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *BigQueryWriter) insert(ctx context.Context, rows []any) error {
	wait := w.first
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.attempts || !transient(err) {
			return fmt.Errorf("insert into %s after %d attempt(s): %w", w.table, attempt, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, w.max)
	}
}

// transient reports whether every failure inside err is worth retrying.
// Composite insert errors count as transient only when all parts are.
func transient(err error) bool {
	if err == nil {
		return false
	}

	// The client returns these composites by value.
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return all(multi, transient)
	}
	var rows cbigquery.PutMultiError
	if errors.As(err, &rows) {
		if len(rows) == 0 {
			return false
		}
		for _, rowErr := range rows {
			if !all(rowErr.Errors, transient) {
				return false
			}
		}
		return true
	}
	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		return all(rowErr.Errors, transient)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
			codes.Aborted, codes.Internal:
			return true
		}
	}
	return false
}

func all(errs []error, pred func(error) bool) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !pred(e) {
			return false
		}
	}
	return true
}

// EncodeJSON renders payload for a BigQuery JSON column. Empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("encode json column: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
