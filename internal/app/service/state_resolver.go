package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/sifan077/shortng/internal/app/model"
	"github.com/sifan077/shortng/internal/app/repository"
	"go.uber.org/zap"
)

const (
	// BucketLinkSeparator marks a link that points at a stored state.
	BucketLinkSeparator = "#!gs://"
	fragmentSeparator   = "#!"
)

var (
	errNotObject    = errors.New("state is not a JSON object")
	errTrailingData = errors.New("trailing data after JSON state")
)

// PublicFetcher reads an object over its public, unauthenticated URL.
type PublicFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// ResolverConfig configures a StateResolver.
type ResolverConfig struct {
	// PublicHost is the base of public object URLs, e.g. https://storage.googleapis.com.
	PublicHost string
	// DefaultViewerURL is used as the base when the link is bare JSON.
	DefaultViewerURL string
}

// StateResolver parses a link into its viewer base URL and state.
type StateResolver struct {
	fetcher    PublicFetcher
	publicHost string
	viewerURL  string
	logger     *zap.Logger
}

// NewStateResolver builds a resolver. A nil logger is replaced with a no-op logger.
func NewStateResolver(fetcher PublicFetcher, cfg ResolverConfig, logger *zap.Logger) *StateResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateResolver{
		fetcher:    fetcher,
		publicHost: strings.TrimSuffix(cfg.PublicHost, "/"),
		viewerURL:  cfg.DefaultViewerURL,
		logger:     logger,
	}
}

// Resolve returns the base URL and viewer state described by link.
//
// Links referencing a stored state are fetched; bare JSON is parsed as is;
// anything else must be a viewer URL whose fragment carries the
// percent-encoded state.
func (r *StateResolver) Resolve(ctx context.Context, link string, source model.RequestSource) (string, model.LinkState, error) {
	if strings.Contains(link, BucketLinkSeparator) {
		return r.resolveStored(ctx, link, source)
	}

	if strings.HasPrefix(strings.TrimSpace(link), "{") {
		state, err := decodeState([]byte(link))
		if err != nil {
			msg := "It appears that JSON was provided instead of a link, but I couldn't parse the JSON:\n" + link
			return "", nil, newError(KindValidation, source, msg, err)
		}
		return r.viewerURL, state, nil
	}

	base, fragment, found := strings.Cut(link, fragmentSeparator)
	if !found {
		return "", nil, r.unparsable(link, source, nil)
	}
	state, err := decodeState([]byte(unquote(fragment)))
	if err != nil {
		return "", nil, r.unparsable(link, source, err)
	}

	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		msg := "Error: Filename must not contain spaces, and links must start with http or https"
		r.logger.Warn("link base has no http scheme", zap.String("base", base))
		return "", nil, newError(KindValidation, source, msg, nil)
	}
	return base, state, nil
}

func (r *StateResolver) resolveStored(ctx context.Context, link string, source model.RequestSource) (string, model.LinkState, error) {
	base, ref, _ := strings.Cut(link, BucketLinkSeparator)
	bucket, key, found := strings.Cut(ref, "/")
	if !found || bucket == "" || key == "" {
		return "", nil, r.unparsable(link, source, nil)
	}

	objectURL := r.PublicURL(bucket, key)
	data, err := r.fetcher.Fetch(ctx, objectURL)
	if err == nil {
		var state model.LinkState
		if state, err = decodeState(data); err == nil {
			return base, state, nil
		}
	}

	msg := fmt.Sprintf("Could not retrieve json state from bucket %s, blob %s", bucket, key)
	r.logger.Error("download stored state failed", zap.String("url", objectURL), zap.Error(err))
	return "", nil, newError(KindNotFound, source, msg, err)
}

// PublicURL returns the unauthenticated URL of an object.
func (r *StateResolver) PublicURL(bucket, key string) string {
	return r.publicHost + "/" + bucket + "/" + key
}

func (r *StateResolver) unparsable(link string, source model.RequestSource, cause error) error {
	r.logger.Warn("could not parse link", zap.String("link", link), zap.Error(cause))
	return newError(KindValidation, source, "Could not parse link:\n\n"+link, cause)
}

// BuildViewerLink encodes state into the fragment of a viewer URL. Resolve
// inverts it.
func BuildViewerLink(base string, state model.LinkState) (string, error) {
	data, err := state.Compact()
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return base + fragmentSeparator + url.PathEscape(string(data)), nil
}

// ShortLink returns the viewer URL referencing a stored state.
func ShortLink(base, bucket, filename string) string {
	return base + BucketLinkSeparator + bucket + "/" + repository.BlobKey(filename)
}

func decodeState(data []byte) (model.LinkState, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, errNotObject
	}
	return model.LinkState(raw), nil
}

// unquote decodes %XX escapes. Malformed escapes are kept literally and
// invalid UTF-8 is replaced, so a stray '%' in a title does not spoil a link.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}
