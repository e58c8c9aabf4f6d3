/*
ws_test.go - Websocket subscription tests

Tests the full path: authenticated upgrade, the initial connected
frame, and delivery of a broadcast update event.
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteops/sheetsync/auth"
	"github.com/siteops/sheetsync/engine"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame wsFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestServeWS_HeaderAuthAndBroadcast(t *testing.T) {
	srv, h := newTestServer(t)

	hdr := http.Header{}
	hdr.Set(auth.HeaderAPIKey, testAPIKey)
	hdr.Set(auth.HeaderUserEmail, testEmail)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), hdr)
	require.NoError(t, err)
	defer conn.Close()

	// GIVEN a fresh connection, the first frame announces the session
	frame := readFrame(t, conn)
	assert.Equal(t, "connected", frame.Event)

	// WHEN an update is broadcast
	require.Eventually(t, func() bool { return h.Bus.Count() == 1 }, time.Second, 10*time.Millisecond)
	h.Bus.Broadcast(engine.EventDataUpdated, engine.UpdatePayload{
		Message:     "업데이트",
		Timestamp:   time.Now(),
		RecordCount: 2,
	})

	// THEN the subscriber receives it as a data_updated frame
	frame = readFrame(t, conn)
	assert.Equal(t, engine.EventDataUpdated, frame.Event)
}

func TestServeWS_QueryParamAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	q := url.Values{"api_key": {testAPIKey}, "email": {testEmail}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL)+"?"+q.Encode(), nil)
	require.NoError(t, err)
	defer conn.Close()

	frame := readFrame(t, conn)
	assert.Equal(t, "connected", frame.Event)
}

func TestServeWS_RejectsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_DisconnectUnregisters(t *testing.T) {
	srv, h := newTestServer(t)

	hdr := http.Header{}
	hdr.Set(auth.HeaderAPIKey, testAPIKey)
	hdr.Set(auth.HeaderUserEmail, testEmail)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), hdr)
	require.NoError(t, err)

	readFrame(t, conn) // connected
	require.Eventually(t, func() bool { return h.Bus.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Bus.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
