// Package ids mints and checks the ULIDs used as primary keys.
package ids

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrInvalidULID = errors.New("invalid ULID")

// source hands out ULIDs that sort in creation order even within one
// millisecond.
var source = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.Reader, 0)}

func NewULID() (string, error) {
	source.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), source.entropy)
	source.Unlock()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func MustNewULID() string {
	id, err := NewULID()
	if err != nil {
		panic(err)
	}
	return id
}

func parse(value string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(value)))
	if err != nil {
		return ulid.ULID{}, ErrInvalidULID
	}
	return id, nil
}

func IsULID(value string) bool {
	_, err := parse(value)
	return err == nil
}

func ValidateULID(value string) error {
	_, err := parse(value)
	return err
}

// Normalize trims and upper-cases an id taken from a path or body.
func Normalize(value string) (string, error) {
	id, err := parse(value)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Time returns the creation instant encoded in id.
func Time(id string) (time.Time, error) {
	parsed, err := parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()).UTC(), nil
}
