package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/api/handlers"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/loader"
	"github.com/wonny/screener/internal/runner"
	"github.com/wonny/screener/internal/scans"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/logger"
)

type prices struct{}

func (prices) Load(_ context.Context, symbols []string, _ string) loader.Result {
	out := make(map[string]contracts.Series)
	for _, sym := range symbols {
		out[sym] = contracts.Series{Symbol: sym, Bars: []contracts.Bar{{
			Time: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000,
		}}}
	}
	return loader.Result{Series: out}
}

type noSymbols struct{}

func (noSymbols) Load(context.Context, universe.Spec) ([]string, error) {
	return nil, universe.ErrUnknownUniverse
}

func newServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	r, err := runner.New(prices{}, nil, runner.WithWorkers(2), runner.WithLogger(logger.Nop()))
	require.NoError(t, err)

	hub := NewHub(func() interface{} { return r.Status() }, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	h := handlers.NewScanHandler(r, scans.Default(), noSymbols{}, nil, hub, logger.Nop())
	srv := httptest.NewServer(NewRouter(h, hub, logger.Nop()))

	t.Cleanup(func() {
		srv.Close()
		r.Shutdown()
		h.Wait()
		cancel()
	})
	return srv, hub
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRoutes(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/strategies", http.StatusOK},
		{http.MethodGet, "/api/scans/active", http.StatusOK},
		{http.MethodDelete, "/api/scans/active", http.StatusOK},
		{http.MethodGet, "/api/scans/last", http.StatusNotFound},
		{http.MethodGet, "/api/scans/history", http.StatusOK},
		{http.MethodPut, "/api/scans", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestStreamDeliversScanEvents(t *testing.T) {
	srv, hub := newServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeStatus, msg.Type)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	body := `{"strategy":"golden_cross","symbols":["AAPL","MSFT"],"period":"1y"}`
	resp, err := http.Post(srv.URL+"/api/scans", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	seen := map[string]int{}
	for seen[handlers.EventSummary] == 0 {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		seen[m.Type]++
	}
	assert.GreaterOrEqual(t, seen[handlers.EventProgress], 1)
}

func TestHubRunStopClosesClients(t *testing.T) {
	hub := NewHub(nil, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Clients())
}
