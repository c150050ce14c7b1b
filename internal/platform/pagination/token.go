package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cursor is a keyset position: the sort timestamp and id of the last item returned.
type Cursor struct {
	At int64  `json:"at"`
	ID string `json:"id"`
}

// After builds the cursor that resumes after an item.
func After(at time.Time, id string) Cursor {
	return Cursor{At: at.UTC().UnixNano(), ID: id}
}

func (c Cursor) IsZero() bool { return c.ID == "" && c.At == 0 }

// Time returns the cursor timestamp in UTC.
func (c Cursor) Time() time.Time { return time.Unix(0, c.At).UTC() }

// EncodeToken serialises the cursor into a URL-safe page token. A zero cursor encodes to "".
func EncodeToken(cursor Cursor) string {
	if cursor.IsZero() {
		return ""
	}
	data, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.ID == "" {
		return Cursor{}, fmt.Errorf("%w: missing id", ErrInvalidPageToken)
	}
	return cursor, nil
}
