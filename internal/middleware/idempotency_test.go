package middleware

import (
	"io"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/imgcrop/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotentApp(t *testing.T, status int) (*fiber.App, *int32, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var calls int32
	app := fiber.New()
	app.Use(Idempotency(repository.NewRedisReplayCache(client), time.Minute, log.New(io.Discard)))
	app.Post("/save", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(status).JSON(fiber.Map{"message": "success", "call": n})
	})
	return app, &calls, mr
}

func doPost(t *testing.T, app *fiber.App, correlationID string) (string, string) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPost, "/save", nil)
	if correlationID != "" {
		req.Header.Set(HeaderCorrelationID, correlationID)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), resp.Header.Get(HeaderIdempotentReplay)
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	app, calls, _ := newIdempotentApp(t, fiber.StatusOK)

	first, replay := doPost(t, app, "req-1")
	assert.Empty(t, replay)

	second, replay := doPost(t, app, "req-1")
	assert.Equal(t, "true", replay)
	assert.JSONEq(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	doPost(t, app, "req-2")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotencyWithoutHeader(t *testing.T) {
	app, calls, _ := newIdempotentApp(t, fiber.StatusOK)

	doPost(t, app, "")
	doPost(t, app, "")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotencySkipsFailures(t *testing.T) {
	app, calls, mr := newIdempotentApp(t, fiber.StatusBadRequest)

	doPost(t, app, "req-1")
	_, replay := doPost(t, app, "req-1")
	assert.Empty(t, replay)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Empty(t, mr.Keys())
}

func TestIdempotencyCacheDown(t *testing.T) {
	app, calls, mr := newIdempotentApp(t, fiber.StatusOK)
	mr.Close()

	body, replay := doPost(t, app, "req-1")
	assert.Empty(t, replay)
	assert.Contains(t, body, "success")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}
