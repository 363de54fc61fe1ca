package sqlstore

import (
	"fmt"
	"time"

	"github.com/phrazzld/keeper-api/internal/domain"
)

// Drivers disagree on how dates and timestamps come back: pgx returns
// time.Time, go-sqlite3 returns time.Time for declared DATE/TIMESTAMP columns
// and text otherwise. The scanners below accept all three shapes.

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	domain.DateLayout,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func toTime(src any) (time.Time, bool, error) {
	switch v := src.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, true, nil
	case string:
		t, err := parseTimestamp(v)
		return t, err == nil, err
	case []byte:
		t, err := parseTimestamp(string(v))
		return t, err == nil, err
	default:
		return time.Time{}, false, fmt.Errorf("cannot scan %T into time", src)
	}
}

// dateScanner reads a calendar date into dst as midnight UTC.
type dateScanner struct {
	dst *time.Time
}

func scanDate(dst *time.Time) *dateScanner {
	return &dateScanner{dst: dst}
}

func (s *dateScanner) Scan(src any) error {
	t, ok, err := toTime(src)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unexpected NULL date")
	}
	*s.dst = domain.DateOf(t)
	return nil
}

// timestampScanner reads a timestamp into dst. A nil pointer destination
// accepts NULL.
type timestampScanner struct {
	dst    *time.Time
	dstPtr **time.Time
}

func scanTimestamp(dst *time.Time) *timestampScanner {
	return &timestampScanner{dst: dst}
}

func scanNullTimestamp(dst **time.Time) *timestampScanner {
	return &timestampScanner{dstPtr: dst}
}

func (s *timestampScanner) Scan(src any) error {
	t, ok, err := toTime(src)
	if err != nil {
		return err
	}
	if s.dstPtr != nil {
		if !ok {
			*s.dstPtr = nil
			return nil
		}
		t = t.UTC()
		*s.dstPtr = &t
		return nil
	}
	if !ok {
		return fmt.Errorf("unexpected NULL timestamp")
	}
	*s.dst = t.UTC()
	return nil
}

// dateArg renders a calendar date parameter. Both dialects compare
// YYYY-MM-DD text correctly against their date columns.
func dateArg(d time.Time) string {
	return domain.FormatDate(d)
}

func nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
