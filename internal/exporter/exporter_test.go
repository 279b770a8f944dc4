package exporter

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
)

func get(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	s := New(":0", prometheus.NewRegistry(), nil, zap.NewNop())
	code, body := get(t, s, constants.PathHealthz)
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok\n", body)
}

func TestReadyz(t *testing.T) {
	s := New(":0", prometheus.NewRegistry(), nil, zap.NewNop())

	code, _ := get(t, s, constants.PathReadyz)
	assert.Equal(t, 503, code)

	s.SetReady(true)
	code, body := get(t, s, constants.PathReadyz)
	assert.Equal(t, 200, code)
	assert.Equal(t, "ready\n", body)

	s.SetReady(false)
	code, _ = get(t, s, constants.PathReadyz)
	assert.Equal(t, 503, code)
}

func TestMetrics_ServesGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "geyser_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	s := New(":0", reg, nil, zap.NewNop())
	code, body := get(t, s, constants.PathMetrics)
	assert.Equal(t, 200, code)
	assert.Contains(t, body, "geyser_test_total 3")
}

type nopFeed struct{}

func (nopFeed) Subscribe(int) (<-chan []byte, func()) {
	ch := make(chan []byte)
	close(ch)
	return ch, func() {}
}

func TestTail_RequiresUpgrade(t *testing.T) {
	s := New(":0", prometheus.NewRegistry(), nopFeed{}, zap.NewNop())
	code, _ := get(t, s, constants.PathTail)
	assert.Equal(t, 426, code)

	noFeed := New(":0", prometheus.NewRegistry(), nil, zap.NewNop())
	code, _ = get(t, noFeed, constants.PathTail)
	assert.Equal(t, 404, code)
}
