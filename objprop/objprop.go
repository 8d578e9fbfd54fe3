// Package objprop loads the leeway object-type property table.
//
// The table is a plain-text file of three-line records:
//
//	KEY [ignored tokens...]
//	free-text description
//	dwSlope dwOffset dwStd cwrSlope cwrOffset cwrStd cwlSlope cwlOffset cwlStd
//
// Parsing stops at the first blank key line or at end of input.
package objprop

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed OBJECTPROP.DAT
var defaultTable string

// NumCoefficients is the number of regression coefficients per record.
const NumCoefficients = 9

// Branch is one regression branch: leeway = Slope*windspeed + Offset, with
// residual standard deviation Std (cm/s).
type Branch struct {
	Slope  float64
	Offset float64
	Std    float64
}

// Properties holds the leeway regression coefficients of one object type.
type Properties struct {
	Index       int // 0-based record position
	Key         string
	Description string

	DownwindSlope  float64 // % of wind speed
	DownwindOffset float64 // cm/s
	DownwindStd    float64 // cm/s

	CrosswindRightSlope  float64
	CrosswindRightOffset float64
	CrosswindRightStd    float64

	CrosswindLeftSlope  float64
	CrosswindLeftOffset float64
	CrosswindLeftStd    float64
}

// Downwind returns the downwind regression branch.
func (p *Properties) Downwind() Branch {
	return Branch{p.DownwindSlope, p.DownwindOffset, p.DownwindStd}
}

// CrosswindRight returns the right-of-downwind regression branch.
func (p *Properties) CrosswindRight() Branch {
	return Branch{p.CrosswindRightSlope, p.CrosswindRightOffset, p.CrosswindRightStd}
}

// CrosswindLeft returns the left-of-downwind regression branch.
func (p *Properties) CrosswindLeft() Branch {
	return Branch{p.CrosswindLeftSlope, p.CrosswindLeftOffset, p.CrosswindLeftStd}
}

// ParseError reports a malformed record in a property table.
type ParseError struct {
	Record int // 0-based record index
	Line   int // 1-based line number of the offending line
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	return fmt.Sprintf("property table: record %d (line %d): %s", e.Record, e.Line, msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Table is an ordered mapping from object-type key to Properties.
// Entries keep file order; At(i) and Lookup(key) address the same records.
// A Table is read-only once loaded.
type Table struct {
	entries []Properties
	byKey   map[string]int
}

// Load parses a property table from r.
func Load(r io.Reader) (*Table, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading property table: %w", err)
	}

	t := &Table{byKey: make(map[string]int)}
	for rec := 0; rec*3 < len(lines); rec++ {
		base := rec * 3
		keyFields := strings.Fields(lines[base])
		if len(keyFields) == 0 {
			break
		}
		key := keyFields[0]

		if base+2 >= len(lines) {
			return nil, &ParseError{Record: rec, Line: base + 1, Msg: fmt.Sprintf("record %q is truncated", key)}
		}
		if _, dup := t.byKey[key]; dup {
			return nil, &ParseError{Record: rec, Line: base + 1, Msg: fmt.Sprintf("duplicate key %q", key)}
		}

		c, err := parseCoefficients(lines[base+2])
		if err != nil {
			return nil, &ParseError{Record: rec, Line: base + 3, Err: err}
		}

		t.byKey[key] = len(t.entries)
		t.entries = append(t.entries, Properties{
			Index:       rec,
			Key:         key,
			Description: strings.TrimSpace(lines[base+1]),

			DownwindSlope:  c[0],
			DownwindOffset: c[1],
			DownwindStd:    c[2],

			CrosswindRightSlope:  c[3],
			CrosswindRightOffset: c[4],
			CrosswindRightStd:    c[5],

			CrosswindLeftSlope:  c[6],
			CrosswindLeftOffset: c[7],
			CrosswindLeftStd:    c[8],
		})
	}
	return t, nil
}

// ErrTooFewCoefficients is wrapped by ParseError when a coefficient line is short.
var ErrTooFewCoefficients = errors.New("too few coefficients")

func parseCoefficients(line string) ([NumCoefficients]float64, error) {
	var c [NumCoefficients]float64
	fields := strings.Fields(line)
	if len(fields) < NumCoefficients {
		return c, fmt.Errorf("%w: got %d, want %d", ErrTooFewCoefficients, len(fields), NumCoefficients)
	}
	if len(fields) > NumCoefficients {
		return c, fmt.Errorf("too many coefficients: got %d, want %d", len(fields), NumCoefficients)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return c, fmt.Errorf("coefficient %d: %w", i+1, err)
		}
		c[i] = v
	}
	return c, nil
}

// LoadFile parses the property table at path. An empty path loads the
// bundled default table.
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening property table: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Default returns the bundled property table.
func Default() (*Table, error) {
	return Load(strings.NewReader(defaultTable))
}

// Len returns the number of object types.
func (t *Table) Len() int { return len(t.entries) }

// At returns the properties at ordinal i.
func (t *Table) At(i int) (*Properties, bool) {
	if i < 0 || i >= len(t.entries) {
		return nil, false
	}
	return &t.entries[i], true
}

// Lookup returns the properties for key.
func (t *Table) Lookup(key string) (*Properties, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return nil, false
	}
	return &t.entries[i], true
}

// Index returns the ordinal of key, or -1.
func (t *Table) Index(key string) int {
	i, ok := t.byKey[key]
	if !ok {
		return -1
	}
	return i
}

// Entries returns a copy of all entries in table order.
func (t *Table) Entries() []Properties {
	out := make([]Properties, len(t.entries))
	copy(out, t.entries)
	return out
}

// Keys returns the object-type keys in table order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.entries))
	for i := range t.entries {
		keys[i] = t.entries[i].Key
	}
	return keys
}
