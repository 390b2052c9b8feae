package readers_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poi_ingest/internal/adapters/readers"
	"poi_ingest/internal/domain"
)

func drain(t *testing.T, r readers.Reader) ([][]domain.RawRecord, error) {
	t.Helper()
	var out [][]domain.RawRecord
	for {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
}

func TestCSV_BatchesAndFields(t *testing.T) {
	src := "poi_id,poi_name,poi_category,poi_latitude,poi_longitude,poi_ratings,extra_column\n" +
		"1,One,cafe,10.0,20.0,\"{5,4,3}\",x\n" +
		"2,Two,bar,11.0,21.0,\"{1}\",y\n" +
		"3,Three,park,12.0\n"

	batches, err := drain(t, readers.NewCSV(strings.NewReader(src), readers.Options{BatchSize: 2}))
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)

	first := batches[0][0]
	assert.Equal(t, domain.FormatTabular, first.Format)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "{5,4,3}", first.Tabular["poi_ratings"])
	assert.Equal(t, "x", first.Tabular["extra_column"])

	short := batches[1][0]
	assert.Equal(t, 3, short.Index)
	_, ok := short.Tabular["poi_longitude"]
	assert.False(t, ok, "missing trailing cells must be absent, not empty")
}

func TestCSV_HeaderOnlyAndEmpty(t *testing.T) {
	for _, src := range []string{"", "poi_id,poi_name\n"} {
		batches, err := drain(t, readers.NewCSV(strings.NewReader(src), readers.Options{}))
		require.NoError(t, err)
		assert.Empty(t, batches)
	}
}

func TestCSV_StripsBOMAndHonorsDelimiter(t *testing.T) {
	src := "\ufeffpoi_id;poi_name\n7;Seven\n"
	batches, err := drain(t, readers.NewCSV(strings.NewReader(src), readers.Options{CSVDelimiter: ';'}))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "7", batches[0][0].Tabular["poi_id"])
	assert.Equal(t, "Seven", batches[0][0].Tabular["poi_name"])
}

func TestCSV_BrokenQuotingIsFileLevel(t *testing.T) {
	src := "poi_id,poi_name\n1,\"unterminated\n"
	_, err := drain(t, readers.NewCSV(strings.NewReader(src), readers.Options{}))
	assert.ErrorIs(t, err, domain.ErrMalformedSource)

	// rows before the unclosed quote still come out in earlier batches
	src = "poi_id,poi_name\n1,One\n2,Two\n3,\"Three\n4,Four\n"
	batches, err := drain(t, readers.NewCSV(strings.NewReader(src), readers.Options{BatchSize: 2}))
	assert.ErrorIs(t, err, domain.ErrMalformedSource)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)

	// a closed quote at the very end, CRLF line endings included, is fine
	src = "poi_id,poi_name\r\n1,\"One\"\r\n2,\"Two\""
	batches, err = drain(t, readers.NewCSV(strings.NewReader(src), readers.Options{}))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "Two", batches[0][1].Tabular["poi_name"])
}

func TestCSV_StrayQuoteStaysInCell(t *testing.T) {
	src := "poi_id,poi_name,poi_category\n" +
		"1,One,cafe\n" +
		"2,Joe's \"Best\" Diner,restaurant\n" +
		"3,\"Quoted, \"\"escaped\"\"\",bar\n"

	batches, err := drain(t, readers.NewCSV(strings.NewReader(src), readers.Options{}))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "One", batches[0][0].Tabular["poi_name"])
	assert.Equal(t, `Joe's "Best" Diner`, batches[0][1].Tabular["poi_name"])
	assert.Equal(t, "restaurant", batches[0][1].Tabular["poi_category"])
	assert.Equal(t, `Quoted, "escaped"`, batches[0][2].Tabular["poi_name"])
	assert.Equal(t, 3, batches[0][2].Index)
}

func TestJSON_StreamsElements(t *testing.T) {
	src := `[
	  {"id": 1, "name": "A", "category": "c", "coordinates": {"latitude": 1, "longitude": 2}, "ratings": [5,4,3]},
	  {"id": "x2", "name": "B", "category": "c", "coordinates": {"latitude": 1, "longitude": 2}, "ratings": []},
	  "not an object"
	]`
	batches, err := drain(t, readers.NewJSON(strings.NewReader(src), readers.Options{BatchSize: 2}))
	require.NoError(t, err)
	require.Len(t, batches, 2)

	a := batches[0][0].Document
	assert.Equal(t, "object", a.Kind)
	assert.JSONEq(t, `1`, string(a.Fields["id"]))
	assert.JSONEq(t, `[5,4,3]`, string(a.Fields["ratings"]))

	odd := batches[1][0]
	assert.Equal(t, 3, odd.Index)
	assert.Equal(t, "string", odd.Document.Kind)
	assert.Nil(t, odd.Document.Fields)
}

func TestJSON_Empty(t *testing.T) {
	batches, err := drain(t, readers.NewJSON(strings.NewReader(" [ ] "), readers.Options{}))
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestJSON_TrailingWhitespaceIsFine(t *testing.T) {
	batches, err := drain(t, readers.NewJSON(strings.NewReader("[{\"id\": 1}]\n\n  \t"), readers.Options{}))
	require.NoError(t, err)
	require.Len(t, batches, 1)
}

func TestJSON_OuterStructureErrors(t *testing.T) {
	cases := map[string]string{
		"object root":  `{"id": 1}`,
		"empty file":   ``,
		"truncated":    `[{"id": 1}`,
		"broken value": `[{"id": 1}, {"id": ]`,
		"trailing doc": `[{"id": 1}] {"garbage": true}`,
		"extra close":  `[{"id": 1}]]]`,
		"trailing num": `[] 42`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := drain(t, readers.NewJSON(strings.NewReader(src), readers.Options{}))
			assert.ErrorIs(t, err, domain.ErrMalformedSource)
		})
	}
}

func TestXML_StreamsChildren(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-8"?>
<pois>
  <poi><pid>1</pid><pname>A</pname><pcategory>c</pcategory><platitude>1.5</platitude><plongitude>2.5</plongitude><pratings>5,4,3</pratings></poi>
  <!-- comment -->
  <poi><pid>2</pid><pname>B</pname><pratings/></poi>
  <poi><pid>3</pid><pid>ignored</pid></poi>
</pois>`
	batches, err := drain(t, readers.NewXML(strings.NewReader(src), readers.Options{BatchSize: 2}))
	require.NoError(t, err)
	require.Len(t, batches, 2)

	first := batches[0][0]
	assert.Equal(t, domain.FormatTree, first.Format)
	assert.Equal(t, "5,4,3", first.Tree["pratings"])
	assert.Equal(t, "1.5", first.Tree["platitude"])

	second := batches[0][1].Tree
	v, ok := second["pratings"]
	assert.True(t, ok)
	assert.Equal(t, "", v)
	_, ok = second["pcategory"]
	assert.False(t, ok)

	assert.Equal(t, "3", batches[1][0].Tree["pid"], "first occurrence wins")
}

func TestXML_EmptyRoot(t *testing.T) {
	batches, err := drain(t, readers.NewXML(strings.NewReader(`<pois></pois>`), readers.Options{}))
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestXML_OuterStructureErrors(t *testing.T) {
	for _, src := range []string{``, `<pois><poi><pid>1</pid></poi>`, `<pois><poi></pois>`} {
		_, err := drain(t, readers.NewXML(strings.NewReader(src), readers.Options{}))
		assert.ErrorIs(t, err, domain.ErrMalformedSource, src)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pois.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1}]`), 0o600))

	r, err := readers.Open(path, domain.FormatDocument, readers.Options{})
	require.NoError(t, err)
	batches, err := drain(t, r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Len(t, batches, 1)

	_, err = readers.Open(filepath.Join(dir, "missing.csv"), domain.FormatTabular, readers.Options{})
	assert.ErrorIs(t, err, domain.ErrSourceUnreadable)

	_, err = readers.Open(path, domain.Format("yaml"), readers.Options{})
	assert.ErrorIs(t, err, domain.ErrUnrecognizedFormat)
}
