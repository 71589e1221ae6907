package scope

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AutoClub/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	return session.NewManager(dbtest.Open(t))
}

func TestRunExposesScopeValues(t *testing.T) {
	mgr := newManager(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	err := Run(context.Background(), mgr, Values{CorrelationID: "req-42", Logger: &logger}, func(ctx context.Context) error {
		id, err := CorrelationID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "req-42", id)

		sess, err := Session(ctx)
		require.NoError(t, err)
		assert.NotNil(t, sess)

		Logger(ctx).Info().Msg("inside")
		zerolog.Ctx(ctx).Info().Msg("via context")
		return nil
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"correlation_id":"req-42","message":"inside"`)
	assert.Contains(t, buf.String(), `"correlation_id":"req-42","message":"via context"`)
}

func TestRunGeneratesCorrelationID(t *testing.T) {
	mgr := newManager(t)

	err := Run(context.Background(), mgr, Values{}, func(ctx context.Context) error {
		id, err := CorrelationID(ctx)
		require.NoError(t, err)
		assert.Len(t, id, 36)
		return nil
	})
	require.NoError(t, err)
}

func TestAccessOutsideScope(t *testing.T) {
	ctx := context.Background()

	_, err := From(ctx)
	assert.ErrorIs(t, err, storeerr.ErrNoActiveScope)
	_, err = Session(ctx)
	assert.ErrorIs(t, err, storeerr.ErrNoActiveScope)
	_, err = CorrelationID(ctx)
	assert.ErrorIs(t, err, storeerr.ErrNoActiveScope)
	assert.NotNil(t, Logger(ctx))

	assert.ErrorIs(t, Missing(ctx, "users"), storeerr.ErrNoActiveScope)
}

func TestRunClosesSessionOnEveryExit(t *testing.T) {
	mgr := newManager(t)
	boom := errors.New("boom")

	t.Run("return", func(t *testing.T) {
		var captured *session.Session
		err := Run(context.Background(), mgr, Values{}, func(ctx context.Context) error {
			captured, _ = Session(ctx)
			return nil
		})
		require.NoError(t, err)
		assert.ErrorIs(t, captured.Close(), storeerr.ErrSessionClosed)
	})

	t.Run("error", func(t *testing.T) {
		var captured *session.Session
		err := Run(context.Background(), mgr, Values{}, func(ctx context.Context) error {
			captured, _ = Session(ctx)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, captured.Close(), storeerr.ErrSessionClosed)
	})

	t.Run("panic", func(t *testing.T) {
		var captured *session.Session
		assert.PanicsWithValue(t, "kaboom", func() {
			_ = Run(context.Background(), mgr, Values{}, func(ctx context.Context) error {
				captured, _ = Session(ctx)
				panic("kaboom")
			})
		})
		require.NotNil(t, captured)
		assert.ErrorIs(t, captured.Close(), storeerr.ErrSessionClosed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var captured *session.Session
		err := Run(ctx, mgr, Values{}, func(ctx context.Context) error {
			captured, _ = Session(ctx)
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, captured.Close(), storeerr.ErrSessionClosed)
	})
}

func TestScopesAreIsolated(t *testing.T) {
	mgr := newManager(t)

	const requests = 5
	sessions := make([]*session.Session, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Run(context.Background(), mgr, Values{}, func(ctx context.Context) error {
				own, err := Session(ctx)
				if err != nil {
					return err
				}
				sessions[i] = own

				// Work fanned out from the request shares its scope.
				child := make(chan *session.Session, 1)
				go func() {
					s, _ := Session(ctx)
					child <- s
				}()
				assert.Same(t, own, <-child)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := make(map[*session.Session]bool)
	for _, s := range sessions {
		require.NotNil(t, s)
		assert.False(t, seen[s], "each scope gets its own session")
		seen[s] = true
	}
}

type failingOpener struct{}

func (failingOpener) Open(context.Context) (*session.Session, error) {
	return nil, storeerr.ErrStoreUnavailable
}

func TestRunReportsOpenFailure(t *testing.T) {
	called := false
	err := Run(context.Background(), failingOpener{}, Values{}, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, storeerr.ErrStoreUnavailable)
	assert.False(t, called)
}
