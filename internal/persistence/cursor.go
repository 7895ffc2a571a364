// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"example.com/attendance/internal/domain"
)

const cursorVersion = 1

// cursorToken is the JSON body of an attendance page token. Times travel as
// Unix nanoseconds so keyset comparisons stay exact.
type cursorToken struct {
	Version int    `json:"v"`
	Nanos   int64  `json:"t"`
	ID      string `json:"id"`
}

// EncodeCursor turns the last record of a page into an opaque token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw, _ := json.Marshal(cursorToken{Version: cursorVersion, Nanos: c.TimeRecorded.UnixNano(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields nil.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	switch {
	case tok.Version != cursorVersion:
		return nil, fmt.Errorf("%w: unsupported cursor version %d", domain.ErrValidation, tok.Version)
	case tok.ID == "" || tok.Nanos <= 0:
		return nil, fmt.Errorf("%w: incomplete cursor", domain.ErrValidation)
	}
	return &domain.Cursor{TimeRecorded: time.Unix(0, tok.Nanos).UTC(), ID: tok.ID}, nil
}
