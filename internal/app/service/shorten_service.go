package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/shortng/internal/app/model"
	"github.com/sifan077/shortng/internal/app/repository"
	"go.uber.org/zap"
)

// LinkService defines behaviour-level operations on short links.
type LinkService interface {
	Shorten(ctx context.Context, in model.InboundRequest) (*Result, error)
	GetLink(ctx context.Context, filename string) (*LinkInfo, error)
	History(ctx context.Context, filename string, limit, offset int) ([]model.SaveEvent, error)
}

// ErrJournalDisabled is returned by History when no journal store is configured.
var ErrJournalDisabled = errors.New("save journal is not configured")

// SavePublisher receives an event after every successful save.
type SavePublisher interface {
	Publish(ctx context.Context, event model.SaveEvent) error
}

// Metrics observes engine outcomes.
type Metrics interface {
	EditDecision(decision model.EditDecision)
	LinkSaved(source model.RequestSource, overwrite bool)
}

// Result describes a stored link.
type Result struct {
	URL         string
	BucketPath  string
	DownloadURL string
	Filename    string
	Source      model.RequestSource
	Overwrite   bool
}

// LinkInfo describes a stored link and its edit status.
type LinkInfo struct {
	Filename          string          `json:"filename"`
	Bucket            string          `json:"bucket"`
	CreatedAt         time.Time       `json:"created_at"`
	PasswordProtected bool            `json:"password_protected"`
	EditableUntil     *time.Time      `json:"editable_until,omitempty"`
	State             json.RawMessage `json:"state"`
}

// Dependencies bundles the collaborators of the link service.
type Dependencies struct {
	Normalizer *RequestNormalizer
	Resolver   *StateResolver
	Authorizer *EditAuthorizer
	Links      repository.LinkRepository
	Passwords  PasswordStore
	Publisher  SavePublisher
	Metrics    Metrics
	// Journal is optional; without it History returns ErrJournalDisabled.
	Journal repository.SaveEventHistory
	Logger  *zap.Logger
	// PublicHost is the base of the download URL returned to web clients.
	PublicHost string
}

type linkService struct {
	normalizer *RequestNormalizer
	resolver   *StateResolver
	authorizer *EditAuthorizer
	links      repository.LinkRepository
	passwords  PasswordStore
	publisher  SavePublisher
	metrics    Metrics
	journal    repository.SaveEventHistory
	logger     *zap.Logger
	publicHost string
}

// NewLinkService returns a service implementation wired with deps.
func NewLinkService(deps Dependencies) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		normalizer: deps.Normalizer,
		resolver:   deps.Resolver,
		authorizer: deps.Authorizer,
		links:      deps.Links,
		passwords:  deps.Passwords,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		journal:    deps.Journal,
		logger:     logger,
		publicHost: deps.PublicHost,
	}
}

// Shorten stores the state carried by the request's link and returns its
// short URL. Failures meant for the caller are returned as *Error.
func (s *linkService) Shorten(ctx context.Context, in model.InboundRequest) (*Result, error) {
	req, err := s.normalizer.Normalize(in)
	if err != nil {
		return nil, err
	}

	base, state, err := s.resolver.Resolve(ctx, req.Link, req.Source)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		if state, err = state.WithTitle(req.Title); err != nil {
			return nil, newError(KindValidation, req.Source, "Could not set the viewer title", err)
		}
	}

	data, err := state.Indent()
	if err != nil {
		return nil, newError(KindValidation, req.Source, "Could not encode the viewer state", err)
	}

	eval, err := s.authorize(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.links.Save(ctx, req.Filename, data, !eval.LinkExists)
	if errors.Is(err, repository.ErrPreconditionFailed) {
		s.logger.Warn("link created concurrently, re-evaluating", zap.String("filename", req.Filename))
		if eval, err = s.authorize(ctx, req); err != nil {
			return nil, err
		}
		err = s.links.Save(ctx, req.Filename, data, false)
	}
	if err != nil {
		return nil, newError(KindUpstream, req.Source, "Could not save the link state", err)
	}

	bucket := s.links.Bucket()
	url := ShortLink(base, bucket, req.Filename)
	s.logger.Info("link saved", zap.String("url", url), zap.Stringer("source", req.Source))

	if req.Password != "" && !eval.PasswordProtected {
		if err := s.passwords.SetPassword(ctx, req.Filename, req.Password); err != nil {
			return nil, newError(KindUpstream, req.Source, "Could not store the link password", err)
		}
		s.logger.Info("password stored", zap.String("key", s.passwords.RecordKey(req.Filename)))
	}

	if s.metrics != nil {
		s.metrics.LinkSaved(req.Source, eval.LinkExists)
	}
	s.publish(ctx, model.SaveEvent{
		ID:                uuid.New().String(),
		Filename:          req.Filename,
		Bucket:            bucket,
		Source:            req.Source.String(),
		Overwrite:         eval.LinkExists,
		PasswordProtected: eval.PasswordProtected || req.Password != "",
		UserAgent:         in.UserAgent,
		Timestamp:         time.Now().UTC(),
	})

	bucketPath := bucket + "/" + repository.BlobKey(req.Filename)
	return &Result{
		URL:         url,
		BucketPath:  bucketPath,
		DownloadURL: s.publicHost + "/" + bucketPath,
		Filename:    req.Filename,
		Source:      req.Source,
		Overwrite:   eval.LinkExists,
	}, nil
}

func (s *linkService) authorize(ctx context.Context, req model.LinkRequest) (Evaluation, error) {
	eval, err := s.authorizer.Evaluate(ctx, req.Filename, req.Password, req.Source)
	if err != nil {
		return eval, err
	}
	if s.metrics != nil {
		s.metrics.EditDecision(eval.Decision)
	}
	if eval.Decision != model.EditAllowed {
		s.logger.Info("edit denied",
			zap.String("filename", req.Filename),
			zap.Stringer("decision", eval.Decision),
		)
		return eval, newError(KindAuthorization, req.Source, s.authorizer.DenialMessage(eval.Decision, req.Filename), nil)
	}
	return eval, nil
}

func (s *linkService) publish(ctx context.Context, event model.SaveEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish save event",
			zap.String("filename", event.Filename),
			zap.Error(err),
		)
	}
}

func (s *linkService) GetLink(ctx context.Context, filename string) (*LinkInfo, error) {
	filename = s.normalizer.FinalizeFilename(filename)
	data, err := s.links.Get(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	created, err := s.links.CreatedAt(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("stat link: %w", err)
	}
	protected, err := s.passwords.Exists(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}

	info := &LinkInfo{
		Filename:          filename,
		Bucket:            s.links.Bucket(),
		CreatedAt:         created.UTC(),
		PasswordProtected: protected,
		State:             json.RawMessage(data),
	}
	if !protected {
		until := info.CreatedAt.Add(s.authorizer.Window())
		info.EditableUntil = &until
	}
	return info, nil
}

func (s *linkService) History(ctx context.Context, filename string, limit, offset int) ([]model.SaveEvent, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	return s.journal.ListByFilename(ctx, s.normalizer.FinalizeFilename(filename), limit, offset)
}
