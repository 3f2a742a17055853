package api

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/clinicore/slotqueue/internal/notify"
)

func dialWS(t *testing.T, httpURL, path string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(httpURL, "http://", "ws://", 1) + path
	conn, err := websocket.Dial(wsURL, "", httpURL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSSubscribeHandshake(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dialWS(t, srv.URL, "/ws/providers/prov-1")

	var hello map[string]string
	require.NoError(t, websocket.JSON.Receive(conn, &hello))
	assert.Equal(t, "subscribed", hello["type"])
	assert.Equal(t, notify.ProviderTopic("prov-1"), hello["topic"])
}

func TestWSReceivesPublishedEvents(t *testing.T) {
	srv, hub := newTestServer(t)

	conn := dialWS(t, srv.URL, "/ws/departments/radiology/"+testToday)

	var hello map[string]string
	require.NoError(t, websocket.JSON.Receive(conn, &hello))

	topic := notify.DepartmentTopic("radiology", testToday)
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(topic) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(notify.Event{
		Topic:   topic,
		Kind:    notify.KindQueueUpdate,
		Payload: map[string]any{"total_waiting": 2},
	})

	var ev struct {
		Topic   string         `json:"topic"`
		Kind    string         `json:"kind"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &ev))
	assert.Equal(t, topic, ev.Topic)
	assert.Equal(t, notify.KindQueueUpdate, ev.Kind)
	assert.EqualValues(t, 2, ev.Payload["total_waiting"])
}

func TestWSDisconnectRemovesSubscriber(t *testing.T) {
	srv, hub := newTestServer(t)

	conn := dialWS(t, srv.URL, "/ws/patients/pat-1")

	var hello map[string]string
	require.NoError(t, websocket.JSON.Receive(conn, &hello))

	topic := notify.PatientTopic("pat-1")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(topic) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(topic) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
