package readers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"poi_ingest/internal/domain"
)

// JSON streams the elements of a top-level array, one element at a time.
type JSON struct {
	src     io.Reader
	dec     *json.Decoder
	size    int
	index   int
	started bool
	done    bool
}

func NewJSON(src io.Reader, opts Options) *JSON {
	return &JSON{src: src, dec: json.NewDecoder(src), size: opts.batchSize()}
}

func (j *JSON) Next() ([]domain.RawRecord, error) {
	if j.done {
		return nil, io.EOF
	}
	if !j.started {
		j.started = true
		if err := j.openArray(); err != nil {
			j.done = true
			return nil, err
		}
	}

	batch := make([]domain.RawRecord, 0, j.size)
	for len(batch) < j.size && j.dec.More() {
		var raw json.RawMessage
		if err := j.dec.Decode(&raw); err != nil {
			j.done = true
			return nil, fmt.Errorf("%w: element %d: %v", domain.ErrMalformedSource, j.index+1, err)
		}
		j.index++
		batch = append(batch, domain.RawRecord{Format: domain.FormatDocument, Index: j.index, Document: entry(raw)})
	}
	if !j.dec.More() {
		j.done = true
		tok, err := j.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated array: %v", domain.ErrMalformedSource, err)
		}
		if d, ok := tok.(json.Delim); !ok || d != ']' {
			return nil, fmt.Errorf("%w: unexpected %v after element %d", domain.ErrMalformedSource, tok, j.index)
		}
		if _, err := j.dec.Token(); !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: trailing content after top-level array", domain.ErrMalformedSource)
		}
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (j *JSON) openArray() error {
	tok, err := j.dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedSource, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("%w: top-level value is not an array", domain.ErrMalformedSource)
	}
	return nil
}

func entry(raw json.RawMessage) *domain.DocumentEntry {
	e := &domain.DocumentEntry{Kind: kindOf(raw)}
	if e.Kind != "object" {
		return e
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return e
	}
	e.Fields = make(map[string][]byte, len(m))
	for k, v := range m {
		e.Fields[k] = v
	}
	return e
}

func kindOf(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "missing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	}
	return "number"
}

func (j *JSON) Close() error { return closer(j.src) }
