package unhcr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/unhcr-mcp/schema"
)

// DefaultYear is queried when the caller does not select a year.
const DefaultYear = 2024

// YearKind identifies which shape a Year was given in.
type YearKind int

const (
	KindAbsent YearKind = iota
	KindNumber
	KindList
	KindText
)

func (k YearKind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("YearKind(%d)", int(k))
	}
}

// Year is a year selector as sent by a caller: nothing, a number, a list of
// numbers or a comma-separated string. The zero value is absent.
type Year struct {
	kind   YearKind
	number int
	list   []int
	text   string
}

// YearOf returns a single-number selector.
func YearOf(n int) Year {
	return Year{kind: KindNumber, number: n}
}

// YearsOf returns a list selector.
func YearsOf(years ...int) Year {
	return Year{kind: KindList, list: append([]int(nil), years...)}
}

// YearText returns a textual selector such as "2022,2023".
func YearText(s string) Year {
	return Year{kind: KindText, text: s}
}

// Kind reports the selector's shape.
func (y Year) Kind() YearKind {
	return y.kind
}

// UnmarshalJSON accepts an integral number, an array of integral numbers, a
// string or null.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*y = Year{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("year: %w", err)
		}
		*y = YearText(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("year: %w", err)
		}
		years := make([]int, 0, len(items))
		for _, item := range items {
			v, err := parseInteger(item)
			if err != nil {
				return err
			}
			years = append(years, v)
		}
		*y = YearsOf(years...)
	default:
		v, err := parseInteger(data)
		if err != nil {
			return err
		}
		*y = YearOf(v)
	}
	return nil
}

func parseInteger(data []byte) (int, error) {
	v, err := ParseInteger(data)
	if errors.Is(err, ErrNotNumber) {
		return 0, fmt.Errorf("year: expected an integer, an array of integers or a string")
	}
	if err != nil {
		return 0, fmt.Errorf("year: %w", err)
	}
	return v, nil
}

// ErrNotNumber is returned by ParseInteger for JSON values that are not numbers.
var ErrNotNumber = errors.New("expected a number")

// ParseInteger decodes a JSON number with no fractional part. Integral
// floats such as 2019.0 are accepted; quoted numbers are not.
func ParseInteger(data []byte) (int, error) {
	var n json.Number
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '"' || json.Unmarshal(data, &n) != nil || n == "" {
		return 0, ErrNotNumber
	}
	if v, err := strconv.Atoi(n.String()); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%s is not an integer", n)
	}
	return int(f), nil
}

// MarshalJSON encodes the selector in the shape it was given.
func (y Year) MarshalJSON() ([]byte, error) {
	switch y.kind {
	case KindNumber:
		return json.Marshal(y.number)
	case KindList:
		return json.Marshal(y.list)
	case KindText:
		return json.Marshal(y.text)
	default:
		return []byte("null"), nil
	}
}

// JSONSchema describes the accepted shapes.
func (Year) JSONSchema() *schema.Schema {
	return &schema.Schema{
		Description: "Year(s) to filter the data (e.g., 2024 or '2022,2023,2024')",
		Default:     DefaultYear,
		OneOf: []*schema.Schema{
			{Type: "integer"},
			{Type: "array", Items: &schema.Schema{Type: "integer"}},
			{Type: "string"},
		},
	}
}

// YearParam is a normalized year selector. The zero value selects no year.
type YearParam struct {
	joined  string
	single  int
	set     bool
	multi   bool
	invalid bool
}

// Single returns a parameter holding one year.
func Single(n int) YearParam {
	return YearParam{single: n, set: true}
}

// Joined returns a parameter holding a comma-joined list of years.
func Joined(s string) YearParam {
	return YearParam{joined: s, set: true, multi: true}
}

// Invalid returns a parameter recording a segment that is not a year.
func Invalid(segment string) YearParam {
	return YearParam{joined: segment, set: true, invalid: true}
}

// Int returns the year and true when p holds exactly one year.
func (p YearParam) Int() (int, bool) {
	if !p.set || p.multi || p.invalid {
		return 0, false
	}
	return p.single, true
}

// Value returns the query parameter text. It is empty for an invalid or
// unset parameter.
func (p YearParam) Value() string {
	switch {
	case !p.set, p.invalid:
		return ""
	case p.multi:
		return p.joined
	default:
		return strconv.Itoa(p.single)
	}
}

// Err returns an *InvalidYearError when p records a malformed segment.
func (p YearParam) Err() error {
	if !p.invalid {
		return nil
	}
	return &InvalidYearError{Segment: p.joined}
}

func (p YearParam) String() string {
	if p.invalid {
		return fmt.Sprintf("invalid(%q)", p.joined)
	}
	return p.Value()
}

// InvalidYearError reports a textual year segment that is not an integer.
type InvalidYearError struct {
	Segment string
}

func (e *InvalidYearError) Error() string {
	return fmt.Sprintf("invalid year %q", e.Segment)
}

// NormalizeYear converts a selector into the value sent upstream. It never
// fails; malformed text yields an Invalid parameter.
func NormalizeYear(y Year) YearParam {
	switch y.kind {
	case KindNumber:
		return Single(y.number)
	case KindList:
		if len(y.list) == 0 {
			return Single(DefaultYear)
		}
		return Joined(joinInts(y.list))
	case KindText:
		segments := strings.Split(y.text, ",")
		years := make([]int, 0, len(segments))
		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			n, err := strconv.Atoi(seg)
			if err != nil {
				return Invalid(seg)
			}
			years = append(years, n)
		}
		if len(years) == 1 {
			return Single(years[0])
		}
		return Joined(joinInts(years))
	default:
		return Single(DefaultYear)
	}
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
