// Package pagination converts keyset positions into opaque cursors so clients do
// not depend on the ordering column.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Kind tags a cursor with the listing it belongs to, so a comment cursor is
// refused by the attendee listing.
type Kind string

const (
	KindEvent      Kind = "evt"
	KindComment    Kind = "cmt"
	KindAttendance Kind = "att"
)

// Encode wraps the id of the last item on a page. An empty id yields an empty
// cursor, meaning there is no next page.
func Encode(kind Kind, id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(string(kind) + ":" + id))
}

// Decode returns the id a cursor of kind points after.
func Decode(kind Kind, cursor string) (string, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return "", ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}
	id, ok := strings.CutPrefix(string(decoded), string(kind)+":")
	if !ok || strings.TrimSpace(id) == "" {
		return "", ErrInvalidCursor
	}
	return id, nil
}

func EncodeEventCursor(id string) string {
	return Encode(KindEvent, id)
}

func DecodeEventCursor(cursor string) (string, error) {
	return Decode(KindEvent, cursor)
}
