// Package scope carries the per-request persistence context through
// context.Context: the request's session, its correlation id and logger.
//
// Code running with a context derived from the one passed to body (including
// goroutines started from it) sees the same scope. Unrelated requests have
// unrelated contexts and therefore unrelated scopes.
package scope

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/AutoClub/internal/pkg/metrics"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

// Opener provides sessions; *session.Manager implements it.
type Opener interface {
	Open(ctx context.Context) (*session.Session, error)
}

// Values seeds a new scope. A missing correlation id is generated; a nil
// logger falls back to the global logger.
type Values struct {
	CorrelationID string
	Logger        *zerolog.Logger
}

type Scope struct {
	session       *session.Session
	correlationID string
	logger        zerolog.Logger
}

func (s *Scope) Session() *session.Session {
	return s.session
}

func (s *Scope) CorrelationID() string {
	return s.correlationID
}

func (s *Scope) Logger() *zerolog.Logger {
	return &s.logger
}

type ctxKey struct{}

// Run opens a session, runs body with a context carrying the new scope and
// closes the session when body returns, fails or panics. A panic is re-raised
// after the session is closed. Close failures are logged and never replace the
// result of body.
func Run(ctx context.Context, opener Opener, values Values, body func(ctx context.Context) error) error {
	correlationID := values.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	base := log.Logger
	if values.Logger != nil {
		base = *values.Logger
	}
	logger := base.With().Str("correlation_id", correlationID).Logger()

	sess, err := opener.Open(logger.WithContext(ctx))
	if err != nil {
		logger.Error().Err(err).Msg("failed to open session for request scope")
		return fmt.Errorf("scope: open session: %w", err)
	}

	sc := &Scope{
		session:       sess,
		correlationID: correlationID,
		logger:        logger,
	}
	scoped := logger.WithContext(context.WithValue(ctx, ctxKey{}, sc))

	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Error().Err(cerr).Str("session_id", sess.ID()).Msg("failed to close session")
		}
	}()

	return body(scoped)
}

// From returns the scope active in ctx.
func From(ctx context.Context) (*Scope, error) {
	if ctx != nil {
		if sc, ok := ctx.Value(ctxKey{}).(*Scope); ok {
			return sc, nil
		}
	}
	return nil, storeerr.ErrNoActiveScope
}

// Session returns the session of the scope active in ctx.
func Session(ctx context.Context) (*session.Session, error) {
	sc, err := From(ctx)
	if err != nil {
		return nil, err
	}
	return sc.session, nil
}

// CorrelationID returns the correlation id of the scope active in ctx.
func CorrelationID(ctx context.Context) (string, error) {
	sc, err := From(ctx)
	if err != nil {
		return "", err
	}
	return sc.correlationID, nil
}

// Logger returns the scope's logger, or the global logger outside a scope.
func Logger(ctx context.Context) *zerolog.Logger {
	if sc, err := From(ctx); err == nil {
		return sc.Logger()
	}
	return &log.Logger
}

// Missing records and logs an attempt to reach the store outside a scope and
// returns ErrNoActiveScope for the caller to propagate.
func Missing(ctx context.Context, what string) error {
	metrics.NoActiveScope.Inc()
	Logger(ctx).Error().
		Str("target", what).
		Msg("store accessed outside of a request scope; wrap the caller in scope.Run")
	return storeerr.ErrNoActiveScope
}
