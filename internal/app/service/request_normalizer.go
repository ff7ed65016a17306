package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/shortng/internal/app/model"
)

const (
	slackUserAgent   = "Slackbot"
	webClientValue   = "web"
	timestampLayout  = "2006-01-02.150405.000000"
	msgNoLink        = "No link was provided!"
	msgNoUserAgent   = "Missing User-Agent header"
	slackCodeCutset  = " `"
	slackFieldSep    = " "
	defaultExtension = ".json"
)

// Form and JSON field names.
const (
	FieldFilename = "filename"
	FieldTitle    = "title"
	FieldPassword = "password"
	FieldText     = "text"
	FieldClient   = "client"
)

// NormalizerConfig holds the values used in generated filenames and hints.
type NormalizerConfig struct {
	Suffix       string
	ViewerURL    string
	ShortenerURL string
	Now          func() time.Time
}

// RequestNormalizer turns an InboundRequest into a LinkRequest.
type RequestNormalizer struct {
	suffix       string
	viewerURL    string
	shortenerURL string
	now          func() time.Time
}

// NewRequestNormalizer returns a normalizer; zero config values fall back to defaults.
func NewRequestNormalizer(cfg NormalizerConfig) *RequestNormalizer {
	if cfg.Suffix == "" {
		cfg.Suffix = defaultExtension
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RequestNormalizer{
		suffix:       cfg.Suffix,
		viewerURL:    cfg.ViewerURL,
		shortenerURL: cfg.ShortenerURL,
		now:          cfg.Now,
	}
}

// Classify determines the request source. First match wins.
func (n *RequestNormalizer) Classify(in model.InboundRequest) model.RequestSource {
	if strings.Contains(in.UserAgent, slackUserAgent) {
		return model.SourceSlack
	}
	if client, _ := in.FormValue(FieldClient); client == webClientValue {
		return model.SourceWeb
	}
	if in.IsJSON() {
		return model.SourceAPIJSON
	}
	return model.SourceAPIPlain
}

// Normalize extracts filename, title, password and link under the rules of
// the request's source.
func (n *RequestNormalizer) Normalize(in model.InboundRequest) (model.LinkRequest, error) {
	source := n.Classify(in)
	if in.UserAgent == "" {
		return model.LinkRequest{}, newError(KindValidation, source, msgNoUserAgent, nil)
	}

	var (
		req model.LinkRequest
		err error
	)
	switch source {
	case model.SourceSlack:
		req, err = n.parseSlack(in)
	case model.SourceWeb, model.SourceAPIPlain:
		req = parseFields(in.FormValue)
	case model.SourceAPIJSON:
		req = parseFields(in.JSONValue)
	}
	if err != nil {
		return model.LinkRequest{}, err
	}

	req.Source = source
	if req.Link == "" {
		return model.LinkRequest{}, newError(KindValidation, source, msgNoLink, nil)
	}
	req.Filename = n.FinalizeFilename(req.Filename)
	return req, nil
}

func parseFields(get func(string) (string, bool)) model.LinkRequest {
	filename, _ := get(FieldFilename)
	title, _ := get(FieldTitle)
	password, _ := get(FieldPassword)
	link, _ := get(FieldText)
	return model.LinkRequest{
		Filename: filename,
		Title:    title,
		Password: password,
		Link:     strings.TrimSpace(link),
	}
}

func (n *RequestNormalizer) parseSlack(in model.InboundRequest) (model.LinkRequest, error) {
	text, _ := in.FormValue(FieldText)
	text = strings.Trim(text, slackCodeCutset)
	if text == "" {
		return model.LinkRequest{}, newError(KindValidation, model.SourceSlack, n.slackUsage(), nil)
	}

	if !strings.Contains(text, slackFieldSep) {
		return model.LinkRequest{Link: text}, nil
	}

	filename, _, _ := strings.Cut(text, slackFieldSep)
	return model.LinkRequest{
		Filename: filename,
		Link:     strings.TrimSpace(text[len(filename):]),
	}, nil
}

func (n *RequestNormalizer) slackUsage() string {
	return fmt.Sprintf("No link provided. Use one of the following formats:\n"+
		"```/shortng my-filename %[1]s...```\n\n"+
		"```/shortng %[1]s...```\n\n"+
		"Alternatively, try the web interface:\n%[2]s", n.viewerURL, n.shortenerURL)
}

// FinalizeFilename applies the default name, the suffix and the space rule.
func (n *RequestNormalizer) FinalizeFilename(filename string) string {
	if filename == "" {
		filename = n.now().Format(timestampLayout)
	}
	if !strings.HasSuffix(filename, n.suffix) {
		filename += n.suffix
	}
	return strings.ReplaceAll(filename, " ", "_")
}
