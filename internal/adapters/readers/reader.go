// Package readers streams POI source files into bounded batches of raw records.
package readers

import (
	"fmt"
	"io"
	"os"

	"poi_ingest/internal/domain"
)

const DefaultBatchSize = 1000

// Reader yields batches of raw records. Next returns io.EOF once the source
// is exhausted; any other error is a file-level failure.
type Reader = domain.BatchReader

type Options struct {
	BatchSize    int
	CSVDelimiter rune
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

// Open opens path and returns the reader for format.
func Open(path string, format domain.Format, opts Options) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnreadable, err)
	}
	var r Reader
	switch format {
	case domain.FormatTabular:
		r = NewCSV(f, opts)
	case domain.FormatDocument:
		r = NewJSON(f, opts)
	case domain.FormatTree:
		r = NewXML(f, opts)
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %q", domain.ErrUnrecognizedFormat, format)
	}
	return r, nil
}

// closer closes the underlying source when it has a Close method.
func closer(src io.Reader) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Opener opens files for the ingestion service.
type Opener struct {
	CSVDelimiter rune
}

func (o Opener) Open(path string, format domain.Format, batchSize int) (domain.BatchReader, error) {
	return Open(path, format, Options{BatchSize: batchSize, CSVDelimiter: o.CSVDelimiter})
}

var _ domain.SourceOpener = Opener{}
