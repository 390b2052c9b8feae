package readers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"poi_ingest/internal/domain"
)

// CSV reads delimited rows keyed by the header line. Cells stay raw strings.
type CSV struct {
	src    io.Reader
	r      *csv.Reader
	quotes *quoteTracker
	size   int
	header []string
	index  int
	done   bool
}

func NewCSV(src io.Reader, opts Options) *CSV {
	comma := ','
	if opts.CSVDelimiter != 0 {
		comma = opts.CSVDelimiter
	}
	qt := &quoteTracker{src: src, comma: comma}
	r := csv.NewReader(qt)
	r.Comma = comma
	r.FieldsPerRecord = -1 // short and long rows are a record-level concern
	// a stray quote inside an unquoted cell belongs to that cell
	r.LazyQuotes = true
	return &CSV{src: src, r: r, quotes: qt, size: opts.batchSize()}
}

func (c *CSV) Next() ([]domain.RawRecord, error) {
	if c.done {
		return nil, io.EOF
	}
	if c.header == nil {
		if err := c.readHeader(); err != nil {
			c.done = true
			return nil, err
		}
	}

	batch := make([]domain.RawRecord, 0, c.size)
	for len(batch) < c.size {
		row, err := c.r.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		if err != nil {
			c.done = true
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSource, err)
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnreadable, err)
		}
		if c.quotes.unterminated(c.r.InputOffset()) {
			c.done = true
			return nil, fmt.Errorf("%w: line %d: quoted field not closed before end of file", domain.ErrMalformedSource, c.index+2)
		}
		c.index++
		fields := make(map[string]string, len(c.header))
		for i, key := range c.header {
			if i >= len(row) {
				break
			}
			fields[key] = row[i]
		}
		batch = append(batch, domain.RawRecord{Format: domain.FormatTabular, Index: c.index, Tabular: fields})
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (c *CSV) readHeader() error {
	h, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		// an empty file has no rows to import
		c.header = []string{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading header: %v", domain.ErrMalformedSource, err)
	}
	if c.quotes.unterminated(c.r.InputOffset()) {
		return fmt.Errorf("%w: header: quoted field not closed before end of file", domain.ErrMalformedSource)
	}
	c.header = make([]string, len(h))
	for i, k := range h {
		if i == 0 {
			k = strings.TrimPrefix(k, "\ufeff")
		}
		c.header[i] = strings.TrimSpace(k)
	}
	return nil
}

func (c *CSV) Close() error { return closer(c.src) }

// quoteTracker follows RFC 4180 quoting over the raw bytes the csv reader
// pulls. Lazy quote mode lets an unclosed quoted field swallow the rest of the
// file; the tracker tells that case apart. Only ASCII delimiters start fields.
type quoteTracker struct {
	src   io.Reader
	comma rune
	state quoteState
	read  int64
	eof   bool
}

type quoteState int

const (
	fieldStart quoteState = iota
	unquoted
	quoted
	quoteInQuoted // a quote seen inside a quoted field: closing or escaping
)

func (q *quoteTracker) Read(p []byte) (int, error) {
	n, err := q.src.Read(p)
	for _, b := range p[:n] {
		q.step(b)
	}
	q.read += int64(n)
	if errors.Is(err, io.EOF) {
		q.eof = true
	}
	return n, err
}

func (q *quoteTracker) step(b byte) {
	sep := rune(b) == q.comma || b == '\n'
	switch q.state {
	case fieldStart:
		switch {
		case b == '"':
			q.state = quoted
		case sep:
		default:
			q.state = unquoted
		}
	case unquoted:
		if sep {
			q.state = fieldStart
		}
	case quoted:
		if b == '"' {
			q.state = quoteInQuoted
		}
	case quoteInQuoted:
		switch {
		case sep:
			q.state = fieldStart
		case b == '\r':
			// CRLF after a closing quote
		default:
			q.state = quoted
		}
	}
}

// unterminated reports whether the record ending at offset reached the end of
// the input while still inside a quoted field.
func (q *quoteTracker) unterminated(offset int64) bool {
	return q.eof && offset == q.read && q.state == quoted
}
