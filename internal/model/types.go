package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Date is a calendar date without a time component. It marshals as
// "2006-01-02" and maps to a SQL DATE column.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// Today returns the current calendar date in the given location.
func Today(loc *time.Location) Date {
	y, m, d := time.Now().In(loc).Date()
	return NewDate(y, m, d)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// ClockTime is a wall-clock time of day with minute precision. It
// marshals as "15:04" and maps to a SQL TIME column.
type ClockTime struct {
	Hour   int
	Minute int
}

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime{Hour: hour, Minute: minute}
}

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		// TIME columns come back as 15:04:05
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return ClockTime{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
		}
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns the offset from midnight, the comparison key for
// window containment checks.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) Before(other ClockTime) bool {
	return c.Minutes() < other.Minutes()
}

func (c ClockTime) Equal(other ClockTime) bool {
	return c.Minutes() == other.Minutes()
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ClockTime) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*c = ClockTime{Hour: v.Hour(), Minute: v.Minute()}
		return nil
	case []byte:
		parsed, err := ParseClockTime(string(v))
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case string:
		parsed, err := ParseClockTime(v)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}
