package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/clinicore/slotqueue/internal/notify"
	"github.com/clinicore/slotqueue/internal/observability/metrics"
	"github.com/clinicore/slotqueue/pkg/logging"
)

// WSHandler serves the push side of the operation surface: one WebSocket
// per topic, delivering the same full-state payloads as the matching GET.
// A client that disconnects misses events and re-fetches on reconnect.
type WSHandler struct {
	hub     *notify.Hub
	metrics *metrics.CoordinationMetrics
	logger  *logging.Logger
}

func NewWSHandler(hub *notify.Hub, m *metrics.CoordinationMetrics, logger *logging.Logger) *WSHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WSHandler{hub: hub, metrics: m, logger: logger}
}

func (h *WSHandler) ProviderEvents(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, notify.ProviderTopic(chi.URLParam(r, "id")))
}

func (h *WSHandler) DepartmentEvents(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, notify.DepartmentTopic(chi.URLParam(r, "id"), chi.URLParam(r, "date")))
}

func (h *WSHandler) PatientEvents(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, notify.PatientTopic(chi.URLParam(r, "id")))
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.stream(conn, topic)
	}).ServeHTTP(w, r)
}

func (h *WSHandler) stream(conn *websocket.Conn, topic string) {
	sub := h.hub.Subscribe(topic)
	defer sub.Close()

	h.metrics.SubscriberConnected()
	defer h.metrics.SubscriberDisconnected()

	h.logger.Debug("push subscriber connected", "topic", topic)

	_ = websocket.JSON.Send(conn, map[string]string{"type": "subscribed", "topic": topic})

	// Drain inbound frames only to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var discard json.RawMessage
			if err := websocket.JSON.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Debug("push subscriber disconnected", "topic", topic)
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, ev); err != nil {
				h.logger.Debug("push send failed, dropping subscriber", "topic", topic, "error", err)
				return
			}
		}
	}
}
