package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"poi_ingest/internal/domain"
)

/********** field keys per format **********/

const (
	csvID        = "poi_id"
	csvName      = "poi_name"
	csvCategory  = "poi_category"
	csvLatitude  = "poi_latitude"
	csvLongitude = "poi_longitude"
	csvRatings   = "poi_ratings"

	docID          = "id"
	docName        = "name"
	docCategory    = "category"
	docCoordinates = "coordinates"
	docLatitude    = "latitude"
	docLongitude   = "longitude"
	docRatings     = "ratings"

	xmlID        = "pid"
	xmlName      = "pname"
	xmlCategory  = "pcategory"
	xmlLatitude  = "platitude"
	xmlLongitude = "plongitude"
	xmlRatings   = "pratings"
)

var (
	errMissing    = errors.New("missing")
	errEmpty      = errors.New("empty")
	errNotFinite  = errors.New("not a finite number")
	errNotDecimal = errors.New("not a decimal number")
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// Normalize turns one raw record into a POI. A non-nil error is always a
// *domain.RejectError; sibling records are unaffected by it.
func Normalize(rec domain.RawRecord) (domain.POI, error) {
	var (
		p   domain.POI
		err error
	)
	switch rec.Format {
	case domain.FormatTabular:
		p, err = normalizeTabular(rec.Tabular)
	case domain.FormatDocument:
		p, err = normalizeDocument(rec.Document)
	case domain.FormatTree:
		p, err = normalizeTree(rec.Tree)
	default:
		err = reject(domain.ReasonMissingField, "format", fmt.Errorf("unknown format %q", rec.Format))
	}
	if err == nil {
		err = checkLimits(p)
	}
	if err != nil {
		var re *domain.RejectError
		if errors.As(err, &re) {
			re.Index = rec.Index
		}
		return domain.POI{}, err
	}
	return p, nil
}

func reject(reason domain.RejectReason, field string, cause error) *domain.RejectError {
	return &domain.RejectError{Reason: reason, Field: field, Err: cause}
}

/********** tabular (csv) **********/

func normalizeTabular(row map[string]string) (domain.POI, error) {
	var p domain.POI

	raw, ok := row[csvID]
	if !ok {
		return p, reject(domain.ReasonInvalidID, csvID, errMissing)
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return p, reject(domain.ReasonInvalidID, csvID, fmt.Errorf("not an integer: %q", raw))
	}
	p.InternalID = id.String()

	if p.Name, ok = row[csvName]; !ok {
		return p, reject(domain.ReasonMissingField, csvName, errMissing)
	}
	if p.Category, ok = row[csvCategory]; !ok {
		return p, reject(domain.ReasonMissingField, csvCategory, errMissing)
	}

	var err error
	if p.Latitude, err = parseCoordinate(row, csvLatitude); err != nil {
		return p, err
	}
	if p.Longitude, err = parseCoordinate(row, csvLongitude); err != nil {
		return p, err
	}

	// Unlike document/tree sources, an empty or brace-less ratings cell is
	// rejected rather than defaulted to 0.
	ratings := row[csvRatings]
	if !strings.HasPrefix(ratings, "{") || !strings.HasSuffix(ratings, "}") {
		return p, reject(domain.ReasonInvalidRatingsFormat, csvRatings, fmt.Errorf("want {n1,n2,...}, got %q", ratings))
	}
	parts := strings.Split(ratings, ",")
	samples := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := parseFinite(strings.Trim(part, "{}"))
		if err != nil {
			return p, reject(domain.ReasonInvalidRatingsValue, csvRatings, err)
		}
		samples = append(samples, f)
	}
	p.Rating = mean(samples)
	return p, nil
}

func parseCoordinate(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, reject(domain.ReasonInvalidCoordinate, key, errMissing)
	}
	f, err := parseFinite(raw)
	if err != nil {
		return 0, reject(domain.ReasonInvalidCoordinate, key, err)
	}
	return f, nil
}

/********** document (json) **********/

func normalizeDocument(e *domain.DocumentEntry) (domain.POI, error) {
	var p domain.POI
	if e == nil || e.Kind != "object" {
		return p, reject(domain.ReasonInvalidID, docID, errors.New("entry is not an object"))
	}

	id, ok := jsonScalar(e.Fields[docID])
	if !ok || strings.TrimSpace(id) == "" {
		return p, reject(domain.ReasonInvalidID, docID, fmt.Errorf("want string or number, got %s", jsonKind(e.Fields[docID])))
	}
	p.InternalID = id

	if p.Name, ok = jsonScalar(e.Fields[docName]); !ok {
		return p, reject(domain.ReasonMissingField, docName, errMissing)
	}
	if p.Category, ok = jsonScalar(e.Fields[docCategory]); !ok {
		return p, reject(domain.ReasonMissingField, docCategory, errMissing)
	}

	coords := e.Fields[docCoordinates]
	if jsonKind(coords) != "object" {
		return p, reject(domain.ReasonInvalidCoordinate, docCoordinates, fmt.Errorf("want object, got %s", jsonKind(coords)))
	}
	var c map[string]json.RawMessage
	if err := json.Unmarshal(coords, &c); err != nil {
		return p, reject(domain.ReasonInvalidCoordinate, docCoordinates, err)
	}
	var err error
	if p.Latitude, err = jsonFloat(c[docLatitude]); err != nil {
		return p, reject(domain.ReasonInvalidCoordinate, docCoordinates+"."+docLatitude, err)
	}
	if p.Longitude, err = jsonFloat(c[docLongitude]); err != nil {
		return p, reject(domain.ReasonInvalidCoordinate, docCoordinates+"."+docLongitude, err)
	}

	raw := e.Fields[docRatings]
	switch jsonKind(raw) {
	case "array":
	case "missing", "null":
		return p, reject(domain.ReasonMissingField, docRatings, errMissing)
	default:
		return p, reject(domain.ReasonInvalidRatingsFormat, docRatings, fmt.Errorf("want array, got %s", jsonKind(raw)))
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return p, reject(domain.ReasonInvalidRatingsFormat, docRatings, err)
	}
	samples := make([]float64, 0, len(elems))
	for _, el := range elems {
		f, err := jsonFloat(el)
		if err != nil {
			return p, reject(domain.ReasonInvalidRatingsValue, docRatings, err)
		}
		samples = append(samples, f)
	}
	p.Rating = mean(samples)
	return p, nil
}

// jsonKind classifies a raw JSON value by its first byte.
func jsonKind(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "missing"
	}
	switch s[0] {
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

// jsonScalar returns strings unquoted and numbers as their literal text.
func jsonScalar(raw []byte) (string, bool) {
	switch jsonKind(raw) {
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case "number":
		return strings.TrimSpace(string(raw)), true
	}
	return "", false
}

// jsonFloat accepts numbers and numeric strings.
func jsonFloat(raw []byte) (float64, error) {
	switch k := jsonKind(raw); k {
	case "number":
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, err
		}
		return f, nil
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return parseFinite(s)
	case "missing":
		return 0, errMissing
	default:
		return 0, fmt.Errorf("want number, got %s", k)
	}
}

/********** tree (xml) **********/

func normalizeTree(el map[string]string) (domain.POI, error) {
	var p domain.POI

	id, ok := el[xmlID]
	if !ok || strings.TrimSpace(id) == "" {
		return p, reject(domain.ReasonInvalidID, xmlID, errEmpty)
	}
	p.InternalID = id

	if p.Name, ok = el[xmlName]; !ok {
		return p, reject(domain.ReasonMissingField, xmlName, errMissing)
	}
	if p.Category, ok = el[xmlCategory]; !ok {
		return p, reject(domain.ReasonMissingField, xmlCategory, errMissing)
	}

	var err error
	if p.Latitude, err = parseCoordinate(el, xmlLatitude); err != nil {
		return p, err
	}
	if p.Longitude, err = parseCoordinate(el, xmlLongitude); err != nil {
		return p, err
	}

	ratings, ok := el[xmlRatings]
	if !ok {
		return p, reject(domain.ReasonMissingField, xmlRatings, errMissing)
	}
	var samples []float64
	if strings.TrimSpace(ratings) != "" {
		for _, part := range strings.Split(ratings, ",") {
			f, err := parseFinite(part)
			if err != nil {
				return p, reject(domain.ReasonInvalidRatingsValue, xmlRatings, err)
			}
			samples = append(samples, f)
		}
	}
	p.Rating = mean(samples)
	return p, nil
}

/********** shared helpers **********/

func parseFinite(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}
	// ParseFloat also takes hex mantissas and underscores after a base prefix
	if d := strings.TrimLeft(s, "+-"); len(d) > 1 && d[0] == '0' && (d[1] == 'x' || d[1] == 'X') {
		return 0, errNotDecimal
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

// mean sums in source order; zero samples give 0.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// checkLimits enforces the store's column constraints on a built POI.
func checkLimits(p domain.POI) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return reject(domain.ReasonMissingField, "", err)
	}
	fe := ves[0]
	field := strings.ToLower(fe.Field())
	if fe.Tag() == "max" {
		return reject(domain.ReasonFieldTooLong, field, fmt.Errorf("longer than %s characters", fe.Param()))
	}
	return reject(domain.ReasonMissingField, field, fmt.Errorf("failed %q", fe.Tag()))
}
