package handler

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type page struct {
	Limit  int
	Offset int
}

func parsePage(r *http.Request) (page, []FieldError) {
	p := page{Limit: defaultPageLimit}
	var errs []FieldError

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			errs = append(errs, FieldError{Field: "limit", Message: "must be between 1 and 100"})
		} else {
			p.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: "offset", Message: "must be zero or greater"})
		} else {
			p.Offset = n
		}
	}

	return p, errs
}
