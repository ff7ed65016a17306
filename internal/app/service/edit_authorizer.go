package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/shortng/internal/app/model"
	"github.com/sifan077/shortng/internal/app/repository"
	"github.com/sifan077/shortng/internal/app/vault"
	"go.uber.org/zap"
)

// DefaultEditWindow is how long a link without a password stays editable.
const DefaultEditWindow = 7 * 24 * time.Hour

// PasswordStore is the subset of the vault used by the engine.
type PasswordStore interface {
	Bucket() string
	RecordKey(filename string) string
	Exists(ctx context.Context, filename string) (bool, error)
	Load(ctx context.Context, filename string) (vault.Record, error)
	SetPassword(ctx context.Context, filename, password string) error
}

// Evaluation is the result of an overwrite check.
type Evaluation struct {
	Decision          model.EditDecision
	LinkExists        bool
	PasswordProtected bool
}

// EditAuthorizer decides whether a link may be written.
type EditAuthorizer struct {
	links     repository.LinkRepository
	passwords PasswordStore
	window    time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// AuthorizerOption customizes an EditAuthorizer.
type AuthorizerOption func(*EditAuthorizer)

// WithEditWindow overrides DefaultEditWindow.
func WithEditWindow(d time.Duration) AuthorizerOption {
	return func(a *EditAuthorizer) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithAuthorizerClock sets the clock used for the age check.
func WithAuthorizerClock(now func() time.Time) AuthorizerOption {
	return func(a *EditAuthorizer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAuthorizerLogger sets the logger.
func WithAuthorizerLogger(logger *zap.Logger) AuthorizerOption {
	return func(a *EditAuthorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewEditAuthorizer builds an authorizer over the link and password buckets.
func NewEditAuthorizer(links repository.LinkRepository, passwords PasswordStore, opts ...AuthorizerOption) *EditAuthorizer {
	a := &EditAuthorizer{
		links:     links,
		passwords: passwords,
		window:    DefaultEditWindow,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Window returns the configured edit window.
func (a *EditAuthorizer) Window() time.Duration {
	return a.window
}

// Evaluate checks whether filename may be written by a caller holding password.
//
// A missing link is always writable. A link with a password record is writable
// only with the matching password, regardless of age. A link without one is
// writable until its creation time plus the edit window.
func (a *EditAuthorizer) Evaluate(ctx context.Context, filename, password string, source model.RequestSource) (Evaluation, error) {
	var eval Evaluation

	protected, err := a.passwords.Exists(ctx, filename)
	if err != nil {
		return eval, newError(KindUpstream, source, "Could not check the password store", err)
	}
	eval.PasswordProtected = protected

	exists, err := a.links.Exists(ctx, filename)
	if err != nil {
		return eval, newError(KindUpstream, source, "Could not check for an existing link", err)
	}
	eval.LinkExists = exists

	switch {
	case !exists:
		eval.Decision = model.EditAllowed
	case protected:
		eval.Decision, err = a.checkPassword(ctx, filename, password, source)
	default:
		eval.Decision, err = a.checkAge(ctx, filename, source)
	}
	if err != nil {
		return eval, err
	}

	a.logger.Debug("edit evaluated",
		zap.String("filename", filename),
		zap.Bool("exists", eval.LinkExists),
		zap.Bool("password_protected", eval.PasswordProtected),
		zap.Stringer("decision", eval.Decision),
	)
	return eval, nil
}

func (a *EditAuthorizer) checkPassword(ctx context.Context, filename, password string, source model.RequestSource) (model.EditDecision, error) {
	rec, err := a.passwords.Load(ctx, filename)
	if err != nil {
		if errors.Is(err, vault.ErrRecordNotFound) {
			msg := fmt.Sprintf("Could not retrieve password file with the name %s in %s",
				a.passwords.RecordKey(filename), a.passwords.Bucket())
			return model.EditDeniedPassword, newError(KindNotFound, source, msg, err)
		}
		return model.EditDeniedPassword, newError(KindUpstream, source, "Could not read the password record", err)
	}

	ok, err := vault.Verify(password, rec.Hash, rec.Salt)
	if err != nil {
		return model.EditDeniedPassword, newError(KindUpstream, source, "Could not verify the password", err)
	}
	if !ok {
		return model.EditDeniedPassword, nil
	}
	return model.EditAllowed, nil
}

func (a *EditAuthorizer) checkAge(ctx context.Context, filename string, source model.RequestSource) (model.EditDecision, error) {
	created, err := a.links.CreatedAt(ctx, filename)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return model.EditAllowed, nil
	}
	if err != nil {
		return model.EditDeniedAge, newError(KindUpstream, source, "Could not read the link creation time", err)
	}
	if created.Add(a.window).After(a.now()) {
		return model.EditAllowed, nil
	}
	return model.EditDeniedAge, nil
}

// DenialMessage returns the user-facing message for a denied decision.
func (a *EditAuthorizer) DenialMessage(decision model.EditDecision, filename string) string {
	switch decision {
	case model.EditDeniedPassword:
		return fmt.Sprintf("A password is required to overwrite the link with filename %s. "+
			"The provided password is missing or incorrect.", filename)
	case model.EditDeniedAge:
		return fmt.Sprintf("This link was last saved more than %s ago and cannot be resaved. "+
			"Please create a new link instead, or contact the site admin to reset the editing period. "+
			"Note that links with passwords can be edited indefinitely.", HumanizeWindow(a.window))
	default:
		return ""
	}
}

// HumanizeWindow renders an edit window as whole days when it is one, e.g.
// "7 days", and as a Go duration otherwise.
func HumanizeWindow(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	switch {
	case days == 1 && d%(24*time.Hour) == 0:
		return "1 day"
	case days > 1 && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%d days", days)
	default:
		return d.String()
	}
}
