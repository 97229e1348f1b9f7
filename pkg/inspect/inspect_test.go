package inspect

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/eyes/pkg/derive"
	"github.com/vango-dev/eyes/pkg/ledger"
	"github.com/vango-dev/eyes/pkg/path"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventsStream(t *testing.T) {
	srv := New(WithLogger(quiet()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 5*time.Millisecond)

	reg := path.NewRegistry()
	l := ledger.New(ledger.WithLogger(quiet()))
	l.Register(srv)
	l.NotifyWrite(reg.FromSegments("cart", "apple"))
	l.NotifyDeltaRead(reg.FromSegments("cart"))

	var got []Event
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		got = append(got, ev)
	}
	assert.Equal(t, ledger.KindWrite, got[0].Kind)
	assert.Equal(t, "cart.apple", got[0].Path)
	assert.Equal(t, ledger.KindDeltaRead, got[1].Kind)
	assert.Less(t, got[0].Seq, got[1].Seq)

	conn.Close()
	require.Eventually(t, func() bool { return srv.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSlowClientDropsEvents(t *testing.T) {
	srv := New(WithLogger(quiet()), WithBuffer(1))
	c := &client{id: uuid.New(), send: make(chan []byte, 1), done: make(chan struct{})}
	srv.clients[c.id] = c

	p := path.NewRegistry().FromSegments("x")
	srv.OnRead(p)
	srv.OnRead(p)
	srv.OnKeyRead(p)

	assert.Len(t, c.send, 1)
	assert.Equal(t, uint64(2), srv.Dropped())
}

func TestNodes(t *testing.T) {
	srv := New(WithLogger(quiet()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	get := func() []derive.Info {
		resp, err := http.Get(ts.URL + "/nodes")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		var nodes []derive.Info
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&nodes))
		return nodes
	}

	assert.Empty(t, get())

	srv.SetNodes([]derive.Info{{ID: 1, Name: "total", Ownership: "strong", Runs: 3}})
	nodes := get()
	require.Len(t, nodes, 1)
	assert.Equal(t, "total", nodes[0].Name)
	assert.Equal(t, uint64(3), nodes[0].Runs)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "inspect_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	ts := httptest.NewServer(New(WithLogger(quiet()), WithGatherer(reg)).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "inspect_test_total 1")
}

func TestMetricsEndpointDisabled(t *testing.T) {
	ts := httptest.NewServer(New(WithLogger(quiet())).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
