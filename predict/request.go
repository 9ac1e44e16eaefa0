// Package predict holds the tax prediction exchange: the wire types, the
// coercion of loosely typed request bodies and the computation policies.
package predict

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
)

// Request is a validated prediction request.
type Request struct {
	Income float64 `json:"income"`
	Year   int     `json:"year"`
}

// Response is the body of every /predict reply. Exactly one field is set.
type Response struct {
	PredictedTax *float64 `json:"predicted_tax,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Success builds a response carrying a predicted value.
func Success(tax float64) Response {
	return Response{PredictedTax: &tax}
}

// Failure builds a response carrying an error message.
func Failure(err error) Response {
	return Response{Error: err.Error()}
}

// Decode reads a JSON object from body and coerces income and year.
// Fields may arrive as JSON numbers or as numeric strings. Presence is
// checked for both fields before either is coerced.
func Decode(body io.Reader) (Request, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Request{}, ErrMalformedBody
	}
	// only whitespace may follow the object
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Request{}, ErrMalformedBody
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return Request{}, ErrMalformedBody
	}

	income, year := fields["income"], fields["year"]
	if income == nil || year == nil {
		return Request{}, ErrMissingFields
	}

	incomeValue, err := coerceFloat(income)
	if err != nil {
		return Request{}, err
	}
	yearValue, err := coerceInt(year)
	if err != nil {
		return Request{}, err
	}
	return Request{Income: incomeValue, Year: yearValue}, nil
}

func coerceFloat(v any) (float64, error) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, ErrInvalidType
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidType
	}
	return f, nil
}

// coerceInt accepts integer strings, and JSON numbers which are truncated
// toward zero when they carry a fraction.
func coerceInt(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(t.String()); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, ErrInvalidType
		}
		f = math.Trunc(f)
		if f > math.MaxInt32 || f < math.MinInt32 {
			return 0, ErrInvalidType
		}
		return int(f), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, ErrInvalidType
		}
		return i, nil
	default:
		return 0, ErrInvalidType
	}
}
