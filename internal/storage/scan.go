package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"finassist/internal/core"
)

// generatedAtLayout sorts lexically in SQLite TEXT columns.
const generatedAtLayout = "2006-01-02T15:04:05.000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

// dateValue scans DATE columns (Postgres) and YYYY-MM-DD text (SQLite).
type dateValue struct{ d *core.Date }

func (v dateValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v.d = core.Date{}
	case time.Time:
		*v.d = core.DateOf(s)
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
	return nil
}

func (v dateValue) parse(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

// timeValue scans TIMESTAMPTZ columns and the text form written by timeArg.
type timeValue struct{ t *time.Time }

func (v timeValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v.t = time.Time{}
	case time.Time:
		*v.t = s.UTC()
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	return nil
}

func (v timeValue) parse(s string) error {
	for _, layout := range []string{generatedAtLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*v.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

// moneyMap scans a JSON object column into a map of amounts.
type moneyMap struct{ m *map[string]core.Money }

func (v moneyMap) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v.m = map[string]core.Money{}
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		// pgx may hand back a decoded JSON value.
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("cannot scan %T into amount map: %w", src, err)
		}
		raw = b
	}
	out := map[string]core.Money{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode amount map: %w", err)
		}
	}
	*v.m = out
	return nil
}

// percentValue scans NUMERIC (Postgres) and decimal text (SQLite).
type percentValue struct{ p *core.Percent }

func (v percentValue) Scan(src any) error {
	var s string
	switch x := src.(type) {
	case nil:
		s = "0"
	case string:
		s = x
	case []byte:
		s = string(x)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(x, 10)
	default:
		return fmt.Errorf("cannot scan %T into percent", src)
	}
	p, err := core.NewPercent(s)
	if err != nil {
		return fmt.Errorf("parse percent %q: %w", s, err)
	}
	*v.p = p
	return nil
}

func encodeMoneyMap(m map[string]core.Money) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// dateArg renders a date for either dialect; Postgres casts the text to DATE.
func dateArg(d core.Date) string {
	return d.String()
}

func (r *SQLRepository) timeArg(t time.Time) any {
	return timeArg(r.dialect, t)
}

func timeArg(dialect Dialect, t time.Time) any {
	if dialect == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(generatedAtLayout)
}
