package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mealbook/internal/auth"
	"github.com/example/mealbook/internal/channel"
	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/domain/user"
	"github.com/example/mealbook/internal/geo"
	"github.com/example/mealbook/internal/lifecycle"
	"github.com/example/mealbook/internal/presence"
	"github.com/example/mealbook/internal/scheduler"
	"github.com/example/mealbook/internal/store/memory"
)

type harness struct {
	srv      *httptest.Server
	clock    *clock.Manual
	bookings *memory.BookingStore
	jobRuns  atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{
		clock:    clock.NewManual(time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)),
		bookings: memory.NewBookingStore(),
	}
	users := memory.NewUserStore()
	fence := geo.Fence{Latitude: 12.9716, Longitude: 77.5946, RadiusMeters: 200}
	authStore := auth.NewStore(users, []byte("0123456789abcdef0123456789abcdef"), []byte("0123456789abcdef"), h.clock)
	_, err := authStore.CreateUser(ctx, auth.NewUser{Username: "ana", Password: "pw"})
	require.NoError(t, err)
	_, err = authStore.CreateUser(ctx, auth.NewUser{Username: "root", Password: "pw", Role: user.RoleAdmin})
	require.NoError(t, err)

	s := &Server{
		Auth: authStore,
		Lifecycle: &lifecycle.Manager{
			Bookings: h.bookings,
			Users:    users,
			Cutoffs:  memory.NewCutoffStore(),
			Fence:    fence,
			Clock:    h.clock,
			Email:    channel.Log{},
		},
		Presence: &presence.Service{Locations: memory.NewLocationStore(), Bookings: h.bookings, Fence: fence, Clock: h.clock},
		Jobs: &scheduler.Scheduler{Jobs: []scheduler.Job{{Name: "dispatch", Schedule: scheduler.Every(time.Minute), Run: func(context.Context) error {
			h.jobRuns.Add(1)
			return nil
		}}}},
	}
	h.srv = httptest.NewServer(s.Routes())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	res := h.do(t, nil, http.MethodPost, "/login", `{"username":"`+username+`","password":"pw"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	return res.Cookies()[0]
}

func (h *harness) do(t *testing.T, c *http.Cookie, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	if c != nil {
		req.AddCookie(c)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func Test_BookingFlow(t *testing.T) {
	h := newHarness(t)
	ana := h.login(t, "ana")
	root := h.login(t, "root")
	const inside = `"latitude":12.9716,"longitude":77.5946`

	res := h.do(t, ana, http.MethodPost, "/api/bookings", `{"startDate":"2026-01-19",`+inside+`}`)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "config_missing", decodeBody(t, res)["error"])

	res = h.do(t, ana, http.MethodPut, "/api/admin/cutoff", `{"cutoff":"22:00"}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res = h.do(t, root, http.MethodPut, "/api/admin/cutoff", `{"cutoff":"22:00"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = h.do(t, ana, http.MethodPost, "/api/bookings", `{"startDate":"2026-01-19","endDate":"2026-01-21",`+inside+`}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Len(t, h.bookings.All(), 3)

	res = h.do(t, ana, http.MethodPost, "/api/bookings", `{"startDate":"2026-01-20",`+inside+`}`)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	body := decodeBody(t, res)
	assert.Equal(t, "already_booked", body["error"])
	assert.Equal(t, "2026-01-20", body["date"])

	res = h.do(t, ana, http.MethodPost, "/api/bookings", `{"startDate":"2026-01-22","latitude":13.05,"longitude":77.5946}`)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "out_of_area", decodeBody(t, res)["error"])

	res = h.do(t, ana, http.MethodDelete, "/api/bookings/2026-01-20", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, booking.StatusCancelled, h.bookings.All()[1].Status)

	res = h.do(t, ana, http.MethodDelete, "/api/bookings/2026-01-25", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	h.clock.Set(time.Date(2026, 1, 18, 23, 0, 0, 0, time.UTC))
	res = h.do(t, ana, http.MethodDelete, "/api/bookings/2026-01-19", "")
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "cutoff_closed", decodeBody(t, res)["error"])
}

func Test_RequiresSession(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, nil, http.MethodPost, "/api/bookings", `{}`)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = h.do(t, nil, http.MethodPost, "/login", `{"username":"ana","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func Test_LocationAndJobs(t *testing.T) {
	h := newHarness(t)
	ana := h.login(t, "ana")
	root := h.login(t, "root")

	res := h.do(t, ana, http.MethodPost, "/api/location", `{"latitude":12.9716,"longitude":77.5946}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := map[string]bool{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.True(t, out["insideFence"])

	res = h.do(t, root, http.MethodPost, "/api/admin/jobs/dispatch", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int32(1), h.jobRuns.Load())

	res = h.do(t, root, http.MethodPost, "/api/admin/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
