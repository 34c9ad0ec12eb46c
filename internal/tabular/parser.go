// Package tabular reads the loosely-quoted CSV produced by the published
// sheet export.
//
// The dialect is deliberately smaller than RFC 4180: a double quote only
// toggles quoted mode (commas inside are data) and is dropped from the
// value. A doubled quote is not an escape, and a quoted field cannot span
// lines. Parse never fails; malformed lines degrade to empty cells.
package tabular

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const bom = "\uFEFF"

// Header is the ordered, de-duplicated view of the header line shared by
// every row of one parse.
type Header struct {
	names []string
	index map[string]int
}

func newHeader(names []string) *Header {
	h := &Header{names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		// first occurrence wins for duplicate column names
		if _, ok := h.index[n]; !ok {
			h.index[n] = i
		}
	}
	return h
}

func (h *Header) Names() []string { return append([]string(nil), h.names...) }

func (h *Header) Len() int { return len(h.names) }

// Row is one data line keyed by header. It always has exactly as many
// cells as the header has names.
type Row struct {
	header *Header
	cells  []string
}

// Get returns the trimmed cell under the given header, or "" when the
// column does not exist.
func (r Row) Get(name string) string {
	if r.header == nil {
		return ""
	}
	i, ok := r.header.index[norm.NFC.String(strings.TrimSpace(name))]
	if !ok {
		return ""
	}
	return r.cells[i]
}

func (r Row) Header() *Header { return r.header }

// Map copies the row into a plain header -> cell map.
func (r Row) Map() map[string]string {
	out := make(map[string]string, len(r.cells))
	if r.header == nil {
		return out
	}
	for name, i := range r.header.index {
		out[name] = r.cells[i]
	}
	return out
}

// Parse splits text into rows keyed by the first non-blank line.
func Parse(text string) []Row {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	names := splitFields(strings.TrimPrefix(lines[0], bom))
	header := newHeader(names)

	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := splitFields(line)
		cells := make([]string, len(names))
		// short rows keep "" for the missing tail, long rows are cut
		copy(cells, fields)
		rows = append(rows, Row{header: header, cells: cells})
	}
	return rows
}

// splitLines breaks on \n, \r\n and lone \r and drops blank lines.
func splitLines(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	out := raw[:0]
	for _, l := range raw {
		if strings.TrimSpace(strings.TrimPrefix(l, bom)) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

func splitFields(line string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		out = append(out, norm.NFC.String(strings.TrimSpace(cur.String())))
		cur.Reset()
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
