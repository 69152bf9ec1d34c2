// Package session identifies the cart a server request operates on.
//
// Clients carry the session in a Cart-Session header, an RFC 8941
// dictionary holding a UUID:
//
//	Cart-Session: id="7f0c3c4e-2f6b-4c55-9a57-0b8d1f0f6a1e"
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
	"github.com/google/uuid"
)

// Header is the request and response header carrying the session.
const Header = "Cart-Session"

// New returns a fresh random session ID.
func New() string {
	return uuid.NewString()
}

// Parse extracts the session ID from a Cart-Session header value.
// Parameters on the id member are ignored.
func Parse(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("empty Cart-Session header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return "", fmt.Errorf("invalid Cart-Session header: %w", err)
	}

	member, ok := dict.Get("id")
	if !ok {
		return "", errors.New("id key not found in Cart-Session header")
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", errors.New("id value must be an item")
	}
	id, ok := item.Value.(string)
	if !ok {
		return "", errors.New("id value must be a string")
	}
	return ParseID(id)
}

// ParseID validates a bare session ID and returns it in canonical form.
func ParseID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("id is not a UUID: %w", err)
	}
	return parsed.String(), nil
}

// Format renders a Cart-Session header value for id.
func Format(id string) string {
	dict := httpsfv.NewDictionary()
	dict.Add("id", httpsfv.NewItem(id))
	s, err := httpsfv.Marshal(dict)
	if err != nil {
		// Only reachable for ids with non-printable characters.
		return fmt.Sprintf("id=%q", id)
	}
	return s
}
