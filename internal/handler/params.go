package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/auth"
)

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func actorFrom(r *http.Request) *uuid.UUID {
	id, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return &id
}

// queryParams collects typed query parameters and the field errors met
// while parsing them.
type queryParams struct {
	r      *http.Request
	errors []FieldError
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r}
}

func (q *queryParams) uuidValue(name string) *uuid.UUID {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.errors = append(q.errors, FieldError{Field: name, Message: "must be a valid UUID"})
		return nil
	}
	return &id
}

func (q *queryParams) boolValue(name string) *bool {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.errors = append(q.errors, FieldError{Field: name, Message: "must be true or false"})
		return nil
	}
	return &b
}

func (q *queryParams) intValue(name string) int {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		q.errors = append(q.errors, FieldError{Field: name, Message: "must be a non-negative integer"})
		return 0
	}
	return n
}

func (q *queryParams) stringValue(name string) string {
	return q.r.URL.Query().Get(name)
}
