package readers

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"poi_ingest/internal/domain"
)

// XML streams the direct children of the root element. Each child's own
// children become the record's fields, keyed by local name.
type XML struct {
	src   io.Reader
	dec   *xml.Decoder
	size  int
	index int
	root  *xml.StartElement
	done  bool
}

type xmlElement struct {
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

func NewXML(src io.Reader, opts Options) *XML {
	return &XML{src: src, dec: xml.NewDecoder(src), size: opts.batchSize()}
}

func (x *XML) Next() ([]domain.RawRecord, error) {
	if x.done {
		return nil, io.EOF
	}
	if x.root == nil {
		if err := x.findRoot(); err != nil {
			x.done = true
			return nil, err
		}
	}

	batch := make([]domain.RawRecord, 0, x.size)
	for len(batch) < x.size {
		tok, err := x.dec.Token()
		if err != nil {
			x.done = true
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("root <%s> not closed", x.root.Name.Local)
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSource, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var el xmlElement
			if err := x.dec.DecodeElement(&el, &t); err != nil {
				x.done = true
				return nil, fmt.Errorf("%w: element %d: %v", domain.ErrMalformedSource, x.index+1, err)
			}
			x.index++
			fields := make(map[string]string, len(el.Fields))
			for _, f := range el.Fields {
				if _, seen := fields[f.XMLName.Local]; !seen {
					fields[f.XMLName.Local] = f.Text
				}
			}
			batch = append(batch, domain.RawRecord{Format: domain.FormatTree, Index: x.index, Tree: fields})
		case xml.EndElement:
			// only the root's end can appear here; children are consumed whole
			x.done = true
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
	}
	return batch, nil
}

func (x *XML) findRoot() error {
	for {
		tok, err := x.dec.Token()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: no root element", domain.ErrMalformedSource)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMalformedSource, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			x.root = &se
			return nil
		}
	}
}

func (x *XML) Close() error { return closer(x.src) }
