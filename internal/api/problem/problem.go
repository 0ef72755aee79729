// Package problem renders RFC 7807 problem documents.
package problem

import (
	"encoding/json"
	"net/http"
)

const ContentType = "application/problem+json"

// TypeBase prefixes every problem type URI; the error code is appended.
const TypeBase = "https://eventplus.dev/problems/"

type Details struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Code     string            `json:"code,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// New starts a problem for an error code. The title defaults to the status text.
func New(status int, code, title string) *Details {
	if title == "" {
		title = http.StatusText(status)
	}
	typ := "about:blank"
	if code != "" {
		typ = TypeBase + code
	}
	return &Details{Type: typ, Title: title, Status: status, Code: code}
}

func (d *Details) WithDetail(detail string) *Details {
	d.Detail = detail
	return d
}

// WithErrors attaches per-field errors. An empty map is ignored.
func (d *Details) WithErrors(errs map[string]string) *Details {
	if len(errs) > 0 {
		d.Errors = errs
	}
	return d
}

// Write sends the document. Instance defaults to the request path.
func (d *Details) Write(w http.ResponseWriter, r *http.Request) {
	if d.Instance == "" && r != nil {
		d.Instance = r.URL.Path
	}
	body, err := json.Marshal(d)
	if err != nil {
		body = []byte(`{"type":"about:blank","title":"Internal Server Error","status":500}`)
		d.Status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(d.Status)
	_, _ = w.Write(body)
}
