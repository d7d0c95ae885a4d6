// Package idx mints the ULIDs used as request ids. They sort by creation
// time, so log lines of one request can be found by range as well as by
// value.
package idx

import (
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

var ErrInvalid = errors.New("idx: invalid ulid")

// New returns an id for now. Ids minted within the same millisecond still
// increase.
func New() ID {
	return ID(ulid.Make().String())
}

// NewAt returns an id stamped with t.
func NewAt(t time.Time) ID {
	return ID(ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String())
}

// Parse accepts only canonical ULIDs, surrounding space aside.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", ErrInvalid
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// Time is the embedded timestamp, or the zero time when id is not a ULID.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
