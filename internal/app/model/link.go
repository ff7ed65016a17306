package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RequestSource identifies where a shorten request came from. It drives both
// field extraction and the shape of the response.
type RequestSource string

const (
	SourceWeb      RequestSource = "web"
	SourceSlack    RequestSource = "slack"
	SourceAPIPlain RequestSource = "api_plain"
	SourceAPIJSON  RequestSource = "api_json"
)

func (s RequestSource) String() string { return string(s) }

// InboundRequest is the transport-neutral view of a POST /shortng call.
// Form holds form fields (urlencoded or multipart); JSON holds the string
// fields of a JSON body. At most one of them is populated.
type InboundRequest struct {
	UserAgent   string
	ContentType string
	Form        map[string]string
	JSON        map[string]string
}

// FormValue returns the form field and whether it was present.
func (r InboundRequest) FormValue(key string) (string, bool) {
	v, ok := r.Form[key]
	return v, ok
}

// JSONValue returns the JSON body field and whether it was present.
func (r InboundRequest) JSONValue(key string) (string, bool) {
	v, ok := r.JSON[key]
	return v, ok
}

// IsJSON reports whether the declared content type is application/json.
func (r InboundRequest) IsJSON() bool {
	mediaType, _, _ := strings.Cut(r.ContentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), "application/json")
}

// LinkRequest is the normalized intent extracted from an inbound request.
type LinkRequest struct {
	Filename string
	Title    string
	Password string
	Link     string
	Source   RequestSource
}

// LinkState is an opaque neuroglancer viewer state: the raw bytes of a JSON
// object, kept as received so key order survives a save.
type LinkState []byte

// WithTitle returns a copy of the state with its title set. An existing title
// is replaced in place; otherwise the key is appended last.
func (s LinkState) WithTitle(title string) (LinkState, error) {
	out, err := sjson.SetBytes(bytes.Clone(s), "title", title)
	if err != nil {
		return nil, err
	}
	return LinkState(out), nil
}

// Get looks up a gjson path in the state.
func (s LinkState) Get(path string) gjson.Result {
	return gjson.GetBytes(s, path)
}

// Indent renders the state with two-space indentation.
func (s LinkState) Indent() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(s), "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compact renders the state without insignificant whitespace.
func (s LinkState) Compact() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EditDecision is the outcome of an overwrite check.
type EditDecision int

const (
	EditAllowed EditDecision = iota
	EditDeniedPassword
	EditDeniedAge
)

func (d EditDecision) String() string {
	switch d {
	case EditAllowed:
		return "allowed"
	case EditDeniedPassword:
		return "denied_password"
	case EditDeniedAge:
		return "denied_age"
	default:
		return "unknown"
	}
}
