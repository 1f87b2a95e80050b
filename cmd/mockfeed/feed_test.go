package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/store"
)

func TestGenerator_SnapshotStatsAreConsistent(t *testing.T) {
	events, points, stats := newGenerator(7).snapshot(200)

	st := store.New(0)
	res := st.ReplaceAll(events, points, &stats)
	assert.Empty(t, res.Rejected)
	assert.True(t, res.StatsTrusted)
	assert.Equal(t, len(points), stats.Mapped)
}

func TestMux_ServesSnapshotAndPush(t *testing.T) {
	srv := httptest.NewServer(newMux(newGenerator(1), 10, 5*time.Millisecond, 0, 0))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events/geo")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Points []domain.GeoPoint `json:"points"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	for _, p := range body.Points {
		assert.NoError(t, domain.ValidateGeoPoint(p))
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := domain.ParseStreamMessage(data)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.DstIP)
	assert.NotNil(t, msg.Lat)
}
