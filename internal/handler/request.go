package handler

// REQUEST VALIDATION:
// Each request body is checked by one function that returns either the typed
// service parameters or a single apperror listing EVERY bad field:
//
//	{"error":"validation_error","message":"name is required; expires_in must be a number",
//	 "fields":[{"field":"name","message":"name is required"},
//	           {"field":"expires_in","message":"expires_in must be a number"}]}
//
// Fields are decoded one at a time from a map of raw JSON values, so a wrong
// type in one field doesn't hide problems in the others. JSON null counts as
// "absent".

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/expiry"
	"github.com/sakif/snippets/internal/service"
)

// Limits bound the size of request fields.
type Limits struct {
	MaxNameBytes    int
	MaxSnippetBytes int
	MaxBodyBytes    int64
	MaxExpiresIn    time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxNameBytes:    1024,
		MaxSnippetBytes: 1 << 20,
		MaxBodyBytes:    2 << 20,
		MaxExpiresIn:    10 * 365 * 24 * time.Hour,
	}
}

// fields reads typed values out of a decoded JSON object and collects
// every problem it finds along the way.
type fields struct {
	raw      map[string]json.RawMessage
	problems []apperror.FieldError
}

func decodeObject(body []byte) (*fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, apperror.ValidationFailed("", "request body must be a JSON object")
	}
	return &fields{raw: raw}, nil
}

func (f *fields) fail(field, format string, args ...any) {
	f.problems = append(f.problems, apperror.FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (f *fields) present(name string) bool {
	v, ok := f.raw[name]
	return ok && string(v) != "null"
}

// str decodes an optional string field. ok is false when the field is
// absent or has the wrong type (the latter is recorded).
func (f *fields) str(name string) (s string, ok bool) {
	if !f.present(name) {
		return "", false
	}
	if err := json.Unmarshal(f.raw[name], &s); err != nil {
		f.fail(name, "%s must be a string", name)
		return "", false
	}
	return s, true
}

// num decodes an optional JSON number field.
func (f *fields) num(name string) (n float64, ok bool) {
	if !f.present(name) {
		return 0, false
	}
	if err := json.Unmarshal(f.raw[name], &n); err != nil {
		f.fail(name, "%s must be a number", name)
		return 0, false
	}
	return n, true
}

func (f *fields) requireStr(name string) string {
	if !f.present(name) {
		f.fail(name, "%s is required", name)
		return ""
	}
	s, _ := f.str(name)
	return s
}

func (f *fields) err() error {
	if len(f.problems) == 0 {
		return nil
	}
	return apperror.InvalidFields(f.problems)
}

func (f *fields) checkName(name string, lim Limits) {
	switch {
	case name == "":
		f.fail("name", "name must not be empty")
	case len(name) > lim.MaxNameBytes:
		f.fail("name", "name must be %d bytes or fewer", lim.MaxNameBytes)
	}
}

func (f *fields) checkSnippet(content string, lim Limits) {
	if len(content) > lim.MaxSnippetBytes {
		f.fail("snippet", "snippet must be %d bytes or fewer", lim.MaxSnippetBytes)
	}
}

// checkExpiresIn validates a positive number of seconds and converts it.
// Values too small to survive conversion to whole nanoseconds are rejected
// like zero: they would leave the snippet expiring at the instant it is
// written.
func (f *fields) checkExpiresIn(secs float64, lim Limits) time.Duration {
	if math.IsNaN(secs) || secs <= 0 {
		f.fail("expires_in", "expires_in must be greater than 0")
		return 0
	}
	if secs > lim.MaxExpiresIn.Seconds() {
		f.fail("expires_in", "expires_in must be at most %.0f seconds", lim.MaxExpiresIn.Seconds())
		return 0
	}
	d := expiry.Seconds(secs)
	if d <= 0 {
		f.fail("expires_in", "expires_in must be greater than 0")
		return 0
	}
	return d
}

// parseCreate validates a create body:
//
//	{"name": string, "expires_in": number > 0, "snippet": string, "password"?: string}
func parseCreate(body []byte, lim Limits) (service.CreateParams, error) {
	f, err := decodeObject(body)
	if err != nil {
		return service.CreateParams{}, err
	}

	var p service.CreateParams
	if f.present("name") {
		if name, ok := f.str("name"); ok {
			f.checkName(name, lim)
			p.Name = name
		}
	} else {
		f.fail("name", "name is required")
	}

	if f.present("expires_in") {
		if secs, ok := f.num("expires_in"); ok {
			p.ExpiresIn = f.checkExpiresIn(secs, lim)
		}
	} else {
		f.fail("expires_in", "expires_in is required")
	}

	p.Content = f.requireStr("snippet")
	f.checkSnippet(p.Content, lim)

	p.Password, _ = f.str("password")

	if err := f.err(); err != nil {
		return service.CreateParams{}, err
	}
	return p, nil
}

// parseEdit validates an edit body:
//
//	{"password": non-empty string, "name"?: string, "snippet"?: string, "expires_in"?: number > 0}
func parseEdit(body []byte, lim Limits) (service.EditParams, error) {
	f, err := decodeObject(body)
	if err != nil {
		return service.EditParams{}, err
	}

	var p service.EditParams
	p.Password = f.requireStr("password")
	if f.present("password") && p.Password == "" {
		f.fail("password", "password must not be empty")
	}

	if name, ok := f.str("name"); ok {
		f.checkName(name, lim)
		p.NewName = &name
	}
	if content, ok := f.str("snippet"); ok {
		f.checkSnippet(content, lim)
		p.Content = &content
	}
	if secs, ok := f.num("expires_in"); ok {
		p.ExtendBy = f.checkExpiresIn(secs, lim)
	}

	if err := f.err(); err != nil {
		return service.EditParams{}, err
	}
	return p, nil
}

// parseDelete reads the optional password of a delete request. An empty
// body is allowed.
func parseDelete(body []byte) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	f, err := decodeObject(body)
	if err != nil {
		return "", err
	}
	password, _ := f.str("password")
	return password, f.err()
}
