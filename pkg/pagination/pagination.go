// Package pagination implements keyset pages over (timestamp DESC, id DESC).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is what a caller asks for: a page size and the cursor returned with
// the previous page.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the last row of the previous page.
type Cursor struct {
	At time.Time
	ID int64
}

type wireCursor struct {
	At int64 `json:"t"`
	ID int64 `json:"i"`
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// LimitWithBuffer is the row count to fetch: one extra tells whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Page cuts rows fetched with LimitWithBuffer(limit) down to the page and
// reports whether more rows follow.
func Page[T any](rows []T, limit int) ([]T, bool) {
	n := NormalizeLimit(limit)
	if len(rows) <= n {
		return rows, false
	}
	return rows[:n], true
}

// EncodeCursor returns an opaque, URL-safe token.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(wireCursor{At: c.At.UTC().UnixNano(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil for an empty token, meaning the first page.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	if w.ID <= 0 || w.At <= 0 {
		return nil, errors.New("cursor: missing position")
	}
	return &Cursor{At: time.Unix(0, w.At).UTC(), ID: w.ID}, nil
}
