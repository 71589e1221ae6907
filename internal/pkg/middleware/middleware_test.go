package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

type testApp struct {
	app *fiber.App
	db  *gorm.DB
	log *bytes.Buffer
}

func newTestApp(t *testing.T, opts ...ScopeOption) *testApp {
	t.Helper()
	db := dbtest.Open(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(AccessLog())
	app.Use(RequestScope(session.NewManager(db), logger, opts...))
	return &testApp{app: app, db: db, log: &buf}
}

func (a *testApp) do(t *testing.T, method, path string, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(body) > 0 {
		_ = json.Unmarshal(body, &out)
	}
	return resp, out
}

func (a *testApp) memberships(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, a.db.Model(&models.Membership{}).Count(&n).Error)
	return n
}

func addMembership(c *fiber.Ctx, number int64) error {
	sess, err := scope.Session(c.UserContext())
	if err != nil {
		return err
	}
	return sess.Add(models.NewMembership(models.PlanFree, number))
}

func TestRequestScopeRequestID(t *testing.T) {
	a := newTestApp(t)
	a.app.Get("/id", func(c *fiber.Ctx) error {
		id, err := scope.CorrelationID(c.UserContext())
		if err != nil {
			return err
		}
		scope.Logger(c.UserContext()).Info().Msg("handled")
		return c.JSON(fiber.Map{"correlation_id": id, "local": c.Locals(KeyRequestID)})
	})

	resp, body := a.do(t, fiber.MethodGet, "/id", map[string]string{HeaderRequestID: "req-7"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-7", resp.Header.Get(HeaderRequestID))
	assert.Equal(t, "req-7", body["correlation_id"])
	assert.Equal(t, "req-7", body["local"])
	assert.Contains(t, a.log.String(), `"correlation_id":"req-7"`)
	assert.Contains(t, a.log.String(), `"path":"/id"`)
	assert.Contains(t, a.log.String(), `"status":200`)

	resp, body = a.do(t, fiber.MethodGet, "/id", nil)
	generated := resp.Header.Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, body["correlation_id"])
}

func TestRequestScopeAutoFlush(t *testing.T) {
	a := newTestApp(t)
	a.app.Post("/ok", func(c *fiber.Ctx) error {
		if err := addMembership(c, 10000000); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusCreated)
	})
	a.app.Post("/fail", func(c *fiber.Ctx) error {
		if err := addMembership(c, 10000001); err != nil {
			return err
		}
		return errors.New("boom")
	})
	a.app.Post("/rejected", func(c *fiber.Ctx) error {
		if err := addMembership(c, 10000002); err != nil {
			return err
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request"})
	})

	resp, _ := a.do(t, fiber.MethodPost, "/ok", nil)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(1), a.memberships(t))

	resp, body := a.do(t, fiber.MethodPost, "/fail", nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal_server_error", body["error"])
	assert.Equal(t, int64(1), a.memberships(t), "failed handlers are not flushed")

	resp, _ = a.do(t, fiber.MethodPost, "/rejected", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int64(1), a.memberships(t))
}

func TestRequestScopeWithoutAutoFlush(t *testing.T) {
	a := newTestApp(t, AutoFlush(false))
	a.app.Post("/", func(c *fiber.Ctx) error {
		if err := addMembership(c, 10000000); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	resp, _ := a.do(t, fiber.MethodPost, "/", nil)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Zero(t, a.memberships(t), "the session is closed without commit")
}

func TestFlushFailureIsReported(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.db.Create(models.NewMembership(models.PlanFree, 10000000)).Error)
	a.app.Post("/", func(c *fiber.Ctx) error {
		if err := addMembership(c, 10000000); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	resp, body := a.do(t, fiber.MethodPost, "/", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, "membership_number", body["field"])
	assert.Equal(t, "Membership Number must be unique", body["message"])
	assert.Equal(t, int64(1), a.memberships(t))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: storeerr.Violation("users", "email", "email", nil), status: fiber.StatusUnprocessableEntity, code: "constraint_violation"},
		{name: "unique", err: storeerr.Violation("users", "email", storeerr.Unique, nil), status: fiber.StatusConflict, code: "conflict"},
		{name: "not found", err: storeerr.ErrNotFound, status: fiber.StatusNotFound, code: "not_found"},
		{name: "unavailable", err: storeerr.ErrStoreUnavailable, status: fiber.StatusServiceUnavailable, code: "service_unavailable"},
		{name: "no scope", err: storeerr.ErrNoActiveScope, status: fiber.StatusInternalServerError, code: "internal_server_error"},
		{name: "fiber error", err: fiber.ErrBadRequest, status: fiber.StatusBadRequest, code: "bad_request"},
		{name: "unknown", err: errors.New("boom"), status: fiber.StatusInternalServerError, code: "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestConcurrentRequestsGetOwnSessions(t *testing.T) {
	a := newTestApp(t)
	a.app.Get("/session", func(c *fiber.Ctx) error {
		sess, err := scope.Session(c.UserContext())
		if err != nil {
			return err
		}
		return c.SendString(sess.ID())
	})

	const requests = 8
	ids := make([]string, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.app.Test(httptest.NewRequest(fiber.MethodGet, "/session", nil), -1)
			if !assert.NoError(t, err) {
				return
			}
			body, _ := io.ReadAll(resp.Body)
			ids[i] = string(body)
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.Len(t, id, 36)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestStoreOutsideScopeIsServerError(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := scope.Session(context.Background())
		return err
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
