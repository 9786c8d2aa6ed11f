package sqlite

import (
	"fmt"
	"time"
)

// timestampLayouts are the text forms SQLite may hand back for
// registered_at. Parsing accepts a fractional second even when the layout
// does not spell one out.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// timestamp scans registered_at whether the driver already converted it to
// time.Time (declared DATETIME column) or passes the raw text through, which
// happens for some RETURNING results.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("registered_at: unsupported type %T", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("registered_at: cannot parse %q", s)
}
