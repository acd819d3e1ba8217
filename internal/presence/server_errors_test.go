package presence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workpresence/internal/api"
)

// newServerMachine runs a Machine against the real REST client. routes maps
// "METHOD /path" to a status and JSON body.
func newServerMachine(t *testing.T, routes map[string]struct {
	status int
	body   string
}) *Machine {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(route.status)
		_, _ = w.Write([]byte(route.body))
	}))
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, api.StaticToken("tok"), api.WithMaxRetries(0))
	now := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	m := New(client, WithClock(func() time.Time { return now }))
	require.NoError(t, m.Load(context.Background()))
	return m
}

func TestServerRejectionTextReachesCaller(t *testing.T) {
	m := newServerMachine(t, map[string]struct {
		status int
		body   string
	}{
		"GET /punches/status": {http.StatusOK, `{"isPunchedIn":false}`},
		"POST /punches/in":    {http.StatusConflict, `{"message":"You have already punched in today"}`},
	})

	err := m.RequestPunchIn(context.Background())
	require.Error(t, err)

	assert.Equal(t, "You have already punched in today", api.Message(err))
	assert.Equal(t, StatePunchedOut, m.State())
}

func TestPartialFailureTextUsesServerMessage(t *testing.T) {
	ctx := context.Background()
	m := newServerMachine(t, map[string]struct {
		status int
		body   string
	}{
		"GET /punches/status":  {http.StatusOK, `{"isPunchedIn":true,"punchInTime":"2026-03-02T09:00:00Z"}`},
		"GET /breaks/status":   {http.StatusOK, `{"isOnBreak":false}`},
		"GET /breaks/duration": {http.StatusOK, `{"totalMinutes":30}`},
		"POST /reports":        {http.StatusOK, `{"message":"saved"}`},
		"POST /punches/out":    {http.StatusConflict, `{"message":"Punch-out window closed"}`},
	})
	require.Equal(t, StatePunchedIn, m.State())

	draft, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)

	err = m.SubmitReport(ctx, draft)
	require.Error(t, err)
	assert.Equal(t, "report saved, but punch-out failed: Punch-out window closed", err.Error())
	assert.Equal(t, StateSubmittingReport, m.State())
}
