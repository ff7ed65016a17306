package service

import (
	"strings"
	"testing"
	"time"

	"github.com/sifan077/shortng/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	slackAgent   = "Slackbot 1.0 (+https://api.slack.com/robots)"
	browserAgent = "Mozilla/5.0"
	viewerURL    = "https://clio-ng.janelia.org/"
	shortenerURL = "https://shortng.example.org/shortener.html"
)

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 123456000, time.UTC)

func newTestNormalizer() *RequestNormalizer {
	return NewRequestNormalizer(NormalizerConfig{
		Suffix:       ".json",
		ViewerURL:    viewerURL,
		ShortenerURL: shortenerURL,
		Now:          func() time.Time { return fixedNow },
	})
}

func TestRequestNormalizer_Classify(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name string
		in   model.InboundRequest
		want model.RequestSource
	}{
		{
			name: "slack wins over web client",
			in:   model.InboundRequest{UserAgent: slackAgent, Form: map[string]string{"client": "web"}},
			want: model.SourceSlack,
		},
		{
			name: "web client",
			in:   model.InboundRequest{UserAgent: browserAgent, Form: map[string]string{"client": "web"}},
			want: model.SourceWeb,
		},
		{
			name: "json body",
			in:   model.InboundRequest{UserAgent: "curl/8.0", ContentType: "application/json; charset=utf-8"},
			want: model.SourceAPIJSON,
		},
		{
			name: "plain form",
			in:   model.InboundRequest{UserAgent: "curl/8.0", ContentType: "application/x-www-form-urlencoded"},
			want: model.SourceAPIPlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Classify(tt.in))
		})
	}
}

func TestRequestNormalizer_DefaultFilenameForEverySource(t *testing.T) {
	n := newTestNormalizer()
	link := "https://clio-ng.janelia.org/#!%7B%7D"

	inputs := map[model.RequestSource]model.InboundRequest{
		model.SourceSlack:    {UserAgent: slackAgent, Form: map[string]string{"text": link}},
		model.SourceWeb:      {UserAgent: browserAgent, Form: map[string]string{"client": "web", "text": link}},
		model.SourceAPIJSON:  {UserAgent: "curl/8.0", ContentType: "application/json", JSON: map[string]string{"text": link}},
		model.SourceAPIPlain: {UserAgent: "curl/8.0", Form: map[string]string{"text": link}},
	}

	for source, in := range inputs {
		t.Run(source.String(), func(t *testing.T) {
			req, err := n.Normalize(in)
			require.NoError(t, err)
			assert.Equal(t, source, req.Source)
			assert.Equal(t, "2024-03-05.140709.123456.json", req.Filename)
			assert.True(t, strings.HasSuffix(req.Filename, ".json"))
			assert.NotContains(t, req.Filename, " ")
			assert.Equal(t, link, req.Link)
		})
	}
}

func TestRequestNormalizer_MissingLinkFailsForEverySource(t *testing.T) {
	n := newTestNormalizer()

	inputs := map[model.RequestSource]model.InboundRequest{
		model.SourceSlack:    {UserAgent: slackAgent, Form: map[string]string{"text": " `` "}},
		model.SourceWeb:      {UserAgent: browserAgent, Form: map[string]string{"client": "web", "text": "   "}},
		model.SourceAPIJSON:  {UserAgent: "curl/8.0", ContentType: "application/json", JSON: map[string]string{"filename": "x"}},
		model.SourceAPIPlain: {UserAgent: "curl/8.0", Form: map[string]string{}},
	}

	for source, in := range inputs {
		t.Run(source.String(), func(t *testing.T) {
			_, err := n.Normalize(in)
			svcErr, ok := AsError(err)
			require.True(t, ok, "expected *Error, got %v", err)
			assert.Equal(t, KindValidation, svcErr.Kind)
			assert.Equal(t, source, svcErr.Source)
		})
	}
}

func TestRequestNormalizer_Slack(t *testing.T) {
	n := newTestNormalizer()

	t.Run("filename and link", func(t *testing.T) {
		req, err := n.Normalize(model.InboundRequest{
			UserAgent: slackAgent,
			Form:      map[string]string{"text": "`my-name   https://clio-ng.janelia.org/#!%7B%7D`"},
		})
		require.NoError(t, err)
		assert.Equal(t, "my-name.json", req.Filename)
		assert.Equal(t, "https://clio-ng.janelia.org/#!%7B%7D", req.Link)
		assert.Empty(t, req.Title)
		assert.Empty(t, req.Password)
	})

	t.Run("link only", func(t *testing.T) {
		req, err := n.Normalize(model.InboundRequest{
			UserAgent: slackAgent,
			Form:      map[string]string{"text": "https://clio-ng.janelia.org/#!%7B%7D"},
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-03-05.140709.123456.json", req.Filename)
		assert.Equal(t, "https://clio-ng.janelia.org/#!%7B%7D", req.Link)
	})

	t.Run("ignores title and password fields", func(t *testing.T) {
		req, err := n.Normalize(model.InboundRequest{
			UserAgent: slackAgent,
			Form:      map[string]string{"text": "a https://x/#!{}", "title": "T", "password": "p"},
		})
		require.NoError(t, err)
		assert.Empty(t, req.Title)
		assert.Empty(t, req.Password)
	})

	t.Run("empty text returns usage", func(t *testing.T) {
		_, err := n.Normalize(model.InboundRequest{UserAgent: slackAgent, Form: map[string]string{"text": "``"}})
		svcErr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindValidation, svcErr.Kind)
		assert.Contains(t, svcErr.Message, "```/shortng my-filename "+viewerURL+"...```")
		assert.True(t, strings.HasSuffix(svcErr.Message, shortenerURL))
	})
}

func TestRequestNormalizer_FieldSources(t *testing.T) {
	n := newTestNormalizer()

	web, err := n.Normalize(model.InboundRequest{
		UserAgent: browserAgent,
		Form: map[string]string{
			"client":   "web",
			"filename": "my link",
			"title":    "EM review",
			"password": "secret",
			"text":     "  https://clio-ng.janelia.org/#!%7B%7D \n",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "my_link.json", web.Filename)
	assert.Equal(t, "EM review", web.Title)
	assert.Equal(t, "secret", web.Password)
	assert.Equal(t, "https://clio-ng.janelia.org/#!%7B%7D", web.Link)

	api, err := n.Normalize(model.InboundRequest{
		UserAgent:   "python-requests/2.31",
		ContentType: "application/json",
		JSON:        map[string]string{"filename": "already.json", "text": "{}"},
	})
	require.NoError(t, err)
	assert.Equal(t, "already.json", api.Filename)
	assert.Equal(t, model.SourceAPIJSON, api.Source)
	assert.Empty(t, api.Password)
}

func TestRequestNormalizer_MissingUserAgent(t *testing.T) {
	n := newTestNormalizer()
	_, err := n.Normalize(model.InboundRequest{Form: map[string]string{"text": "https://x/#!{}"}})

	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, svcErr.Kind)
	assert.Equal(t, model.SourceAPIPlain, svcErr.Source)
}
