package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// DecodeJSON reads a single JSON object from the request body and rejects
// unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("Request body is empty")
		default:
			return apperrors.InvalidInput("Invalid JSON body: " + err.Error())
		}
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON that leaves dst untouched for an empty body.
func DecodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return DecodeJSON(r, dst)
}

// ExtractDateRange reads check_in and check_out query parameters.
func ExtractDateRange(r *http.Request) (calendar.Range, error) {
	query := r.URL.Query()
	checkIn, err := calendar.ParseDate(query.Get("check_in"))
	if err != nil {
		return calendar.Range{}, apperrors.InvalidInput("check_in must be a YYYY-MM-DD date")
	}
	checkOut, err := calendar.ParseDate(query.Get("check_out"))
	if err != nil {
		return calendar.Range{}, apperrors.InvalidInput("check_out must be a YYYY-MM-DD date")
	}
	rng, err := calendar.NewRange(checkIn, checkOut)
	if err != nil {
		return calendar.Range{}, apperrors.InvalidDateRange("check_out must be after check_in")
	}
	return rng, nil
}

// ExtractDate reads a YYYY-MM-DD query parameter, defaulting to today.
func ExtractDate(r *http.Request, name string) (time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return calendar.Date(time.Now()), nil
	}
	d, err := calendar.ParseDate(s)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(name + " must be a YYYY-MM-DD date")
	}
	return d, nil
}
