package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sifan077/shortng/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const publicHost = "https://storage.googleapis.com"

type mockFetcher struct {
	fetchFn func(ctx context.Context, rawURL string) ([]byte, error)
	urls    []string
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	m.urls = append(m.urls, rawURL)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, rawURL)
	}
	return nil, errors.New("not found")
}

func newTestResolver(f PublicFetcher) *StateResolver {
	return NewStateResolver(f, ResolverConfig{PublicHost: publicHost + "/", DefaultViewerURL: viewerURL}, nil)
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	svcErr, ok := AsError(err)
	require.True(t, ok, "expected *Error, got %v", err)
	assert.Equal(t, kind, svcErr.Kind)
	return svcErr
}

func TestStateResolver_StoredLink(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, rawURL string) ([]byte, error) {
			return []byte(`{"layers": [], "position": [1, 2.5]}`), nil
		},
	}
	r := newTestResolver(fetcher)

	base, state, err := r.Resolve(context.Background(),
		"https://neuroglancer-demo.appspot.com/#!gs://other-bucket/short/abc.json", model.SourceAPIPlain)
	require.NoError(t, err)

	assert.Equal(t, "https://neuroglancer-demo.appspot.com/", base)
	assert.Equal(t, "[1, 2.5]", state.Get("position").Raw)
	assert.Equal(t, []string{"https://storage.googleapis.com/other-bucket/short/abc.json"}, fetcher.urls)
}

func TestStateResolver_StoredLinkFailures(t *testing.T) {
	link := "https://clio-ng.janelia.org/#!gs://flyem-user-links/short/gone.json"
	bodies := map[string]func(context.Context, string) ([]byte, error){
		"fetch error": func(context.Context, string) ([]byte, error) { return nil, errors.New("404") },
		"empty body":  func(context.Context, string) ([]byte, error) { return nil, nil },
		"not json":    func(context.Context, string) ([]byte, error) { return []byte("<html>"), nil },
	}

	for name, fn := range bodies {
		t.Run(name, func(t *testing.T) {
			r := newTestResolver(&mockFetcher{fetchFn: fn})
			_, _, err := r.Resolve(context.Background(), link, model.SourceSlack)

			svcErr := requireKind(t, err, KindNotFound)
			assert.Equal(t, "Could not retrieve json state from bucket flyem-user-links, blob short/gone.json", svcErr.Message)
			assert.Equal(t, model.SourceSlack, svcErr.Source)
		})
	}
}

func TestStateResolver_StoredLinkWithoutBlob(t *testing.T) {
	r := newTestResolver(&mockFetcher{})
	_, _, err := r.Resolve(context.Background(), "https://x.org/#!gs://bucket-only", model.SourceWeb)
	requireKind(t, err, KindValidation)
}

func TestStateResolver_InlineJSON(t *testing.T) {
	r := newTestResolver(&mockFetcher{})

	base, state, err := r.Resolve(context.Background(), `  {"layout": "xy", "crossSectionScale": 1.25}`, model.SourceAPIJSON)
	require.NoError(t, err)
	assert.Equal(t, viewerURL, base)
	assert.Equal(t, "xy", state.Get("layout").String())
	assert.Equal(t, "1.25", state.Get("crossSectionScale").Raw)

	for _, bad := range []string{
		`{"layout": `,
		`{"a": 1}}`,
		`{"a": 1}]`,
		`{"a": 1} {"b": 2}`,
	} {
		_, _, err = r.Resolve(context.Background(), bad, model.SourceAPIJSON)
		svcErr := requireKind(t, err, KindValidation)
		assert.Equal(t, "It appears that JSON was provided instead of a link, but I couldn't parse the JSON:\n"+bad, svcErr.Message)
	}
}

func TestStateResolver_FragmentLink(t *testing.T) {
	r := newTestResolver(&mockFetcher{})

	base, state, err := r.Resolve(context.Background(),
		"https://neuroglancer-demo.appspot.com/#!%7B%22layout%22%3A%224panel%22%7D", model.SourceWeb)
	require.NoError(t, err)
	assert.Equal(t, "https://neuroglancer-demo.appspot.com/", base)
	assert.Equal(t, `{"layout":"4panel"}`, string(state))

	_, state, err = r.Resolve(context.Background(), `http://localhost:8000/#!{"a":[1,2]}`, model.SourceWeb)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", state.Get("a").Raw)
}

func TestStateResolver_FragmentWithStrayPercent(t *testing.T) {
	r := newTestResolver(&mockFetcher{})

	_, state, err := r.Resolve(context.Background(),
		"https://clio-ng.janelia.org/#!%7B%22title%22%3A%22100%zz%20done%22%7D", model.SourceWeb)
	require.NoError(t, err)
	assert.Equal(t, "100%zz done", state.Get("title").String())

	_, state, err = r.Resolve(context.Background(), `https://clio-ng.janelia.org/#!{"title":"50%"}`, model.SourceWeb)
	require.NoError(t, err)
	assert.Equal(t, "50%", state.Get("title").String())
}

func TestUnquote(t *testing.T) {
	cases := map[string]string{
		"plain":        "plain",
		"%7B%7d":       "{}",
		"100%":         "100%",
		"100%2":        "100%2",
		"%zz%41":       "%zzA",
		"%E2%9C%93":    "\u2713",
		"bad %FF byte": "bad \uFFFD byte",
	}
	for in, want := range cases {
		assert.Equal(t, want, unquote(in), in)
	}
}

func TestStateResolver_FragmentFailures(t *testing.T) {
	r := newTestResolver(&mockFetcher{})

	for _, link := range []string{
		"https://clio-ng.janelia.org/",
		"https://clio-ng.janelia.org/#!%7B%22a%22",
		"https://clio-ng.janelia.org/#![1,2]",
		"https://clio-ng.janelia.org/#!%7B%22a%22%3A1%7D%7D",
		"https://clio-ng.janelia.org/#!%7B%22a%22%3A1%7D%5D",
	} {
		_, _, err := r.Resolve(context.Background(), link, model.SourceAPIPlain)
		svcErr := requireKind(t, err, KindValidation)
		assert.Equal(t, "Could not parse link:\n\n"+link, svcErr.Message)
	}

	_, _, err := r.Resolve(context.Background(), "ftp://clio-ng.janelia.org/#!%7B%7D", model.SourceAPIPlain)
	svcErr := requireKind(t, err, KindValidation)
	assert.Equal(t, "Error: Filename must not contain spaces, and links must start with http or https", svcErr.Message)
}

func TestStateResolver_RoundTrip(t *testing.T) {
	r := newTestResolver(&mockFetcher{})
	original := model.LinkState(`{
  "title": "a b&c #! 100%",
  "showSlices": false,
  "position": [100, 2.5, -3e2],
  "layers": [{"name": "seg", "type": "segmentation", "segments": ["12345678901234567890"]}],
  "nothing": null
}`)

	link, err := BuildViewerLink(viewerURL, original)
	require.NoError(t, err)

	base, state, err := r.Resolve(context.Background(), link, model.SourceAPIPlain)
	require.NoError(t, err)
	assert.Equal(t, viewerURL, base)

	want, err := original.Compact()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(state))
}

func TestShortLink(t *testing.T) {
	assert.Equal(t,
		"https://clio-ng.janelia.org/#!gs://flyem-user-links/short/my-link.json",
		ShortLink(viewerURL, "flyem-user-links", "my-link.json"))
}
