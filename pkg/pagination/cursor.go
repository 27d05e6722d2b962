// Package pagination implements keyset paging for list endpoints. Clients
// page forward with first/after (newest first) or backward with
// last/before; a cursor is an opaque URL-safe token naming the row a page
// ended on, so new rows never shift an open page the way OFFSET does.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor pins a page boundary to a (creation time, id) pair. The ID breaks
// ties between rows created in the same microsecond.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// Encode renders the cursor as a URL-safe token so it can ride in a query
// parameter without escaping.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.Timestamp.UnixMicro(), 10) + "." + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// EncodeCursor builds a token straight from a row's sort key.
func EncodeCursor(timestamp time.Time, id string) string {
	return Cursor{Timestamp: timestamp, ID: id}.Encode()
}

// DecodeCursor parses a client token. An empty token means "from the
// start" and decodes to nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	tsPart, id, found := strings.Cut(string(data), ".")
	if !found || id == "" {
		return nil, fmt.Errorf("invalid cursor: missing id")
	}
	micros, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return &Cursor{Timestamp: time.UnixMicro(micros), ID: id}, nil
}

// ClampLimit folds non-positive limits to the default and caps runaway
// page sizes.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

type Direction int

const (
	// Forward pages newest-first toward older rows (first/after).
	Forward Direction = iota
	// Backward fetches oldest-first past the cursor; the handler reverses
	// the slice so the page still reads newest-first (last/before).
	Backward
)

// Params is the parsed paging request.
type Params struct {
	Limit     int
	Cursor    *Cursor
	Direction Direction
}

// Parse resolves the four paging query values into Params. When a request
// mixes both styles, last/before wins.
func Parse(first int, after string, last int, before string) (*Params, error) {
	if last > 0 {
		cursor, err := DecodeCursor(before)
		if err != nil {
			return nil, fmt.Errorf("invalid before cursor: %w", err)
		}
		return &Params{Limit: ClampLimit(last), Cursor: cursor, Direction: Backward}, nil
	}

	cursor, err := DecodeCursor(after)
	if err != nil {
		return nil, fmt.Errorf("invalid after cursor: %w", err)
	}
	return &Params{Limit: ClampLimit(first), Cursor: cursor, Direction: Forward}, nil
}

// Response is the page metadata returned alongside list results.
type Response struct {
	TotalCount      int32  `json:"total_count"`
	HasNextPage     bool   `json:"has_next_page"`
	HasPreviousPage bool   `json:"has_previous_page"`
	StartCursor     string `json:"start_cursor,omitempty"`
	EndCursor       string `json:"end_cursor,omitempty"`
}

// BuildResponse derives page flags from an overfetch: handlers ask for
// limit+1 rows and pass the untrimmed length here, so hasMore falls out
// without a second query. The flag opposite the fetch direction is
// approximated by "a cursor exists", which holds for every page after the
// first.
func BuildResponse(fetched, limit int, direction Direction, totalCount int32, startCursor, endCursor string) *Response {
	hasMore := fetched > limit
	onPage := startCursor != "" && endCursor != ""

	resp := &Response{
		TotalCount:  totalCount,
		StartCursor: startCursor,
		EndCursor:   endCursor,
	}
	if direction == Forward {
		resp.HasNextPage = hasMore
		resp.HasPreviousPage = onPage
	} else {
		resp.HasPreviousPage = hasMore
		resp.HasNextPage = onPage
	}
	return resp
}

// KeysetBuilder renders the WHERE and ORDER BY fragments for a keyset
// query over a (timestamp, id) sort key.
type KeysetBuilder struct {
	TimestampColumn string
	IDColumn        string
}

// Condition returns the row-comparison predicate for the cursor, numbering
// placeholders from startArgIdx. No cursor means no predicate.
func (b KeysetBuilder) Condition(params *Params, startArgIdx int) (string, []interface{}) {
	if params.Cursor == nil {
		return "", nil
	}

	op := "<"
	if params.Direction == Backward {
		op = ">"
	}
	clause := fmt.Sprintf("(%s, %s) %s ($%d, $%d)",
		b.TimestampColumn, b.IDColumn, op, startArgIdx, startArgIdx+1)
	return clause, []interface{}{params.Cursor.Timestamp, params.Cursor.ID}
}

// OrderBy returns the sort clause matching Condition's comparison.
func (b KeysetBuilder) OrderBy(params *Params) string {
	dir := "DESC"
	if params.Direction == Backward {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, %s %s", b.TimestampColumn, dir, b.IDColumn, dir)
}
