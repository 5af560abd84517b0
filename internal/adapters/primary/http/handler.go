package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
	"github.com/pedromedina19/hermes-bridge/internal/core/metrics"
	"github.com/pedromedina19/hermes-bridge/internal/core/ports"
	"github.com/pedromedina19/hermes-bridge/internal/core/services"
)

type BrokerInfo struct {
	URL      string
	ClientID string
}

type RestHandler struct {
	query    *services.QueryService
	monitor  ports.ConnectionMonitor
	feed     ports.Feed
	broker   BrokerInfo
	logger   ports.Logger
	upgrader websocket.Upgrader
}

// MessageView is the wire shape of a record: {"ts": "HH:MM:SS", "topic": ..., "msg": ...}.
type MessageView struct {
	TS    string `json:"ts"`
	Topic string `json:"topic"`
	Msg   string `json:"msg"`
}

type HistoryResponse struct {
	Mensajes []MessageView `json:"mensajes"`
}

type HistoryStats struct {
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
}

type StatusResponse struct {
	ClientID string           `json:"client_id"`
	Broker   string           `json:"broker"`
	State    string           `json:"state"`
	Topics   []string         `json:"topics"`
	History  HistoryStats     `json:"history"`
	Stats    metrics.Snapshot `json:"stats"`
}

func NewHttpHandler(query *services.QueryService, monitor ports.ConnectionMonitor, feed ports.Feed, broker BrokerInfo, logger ports.Logger) *RestHandler {
	return &RestHandler{
		query:   query,
		monitor: monitor,
		feed:    feed,
		broker:  broker,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// read-only public feed, same policy as the JSON endpoints
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *RestHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/mqtt", h.HandleHistory)
	mux.HandleFunc("/api/peek", h.HandlePeek)
	mux.HandleFunc("/api/status", h.HandleStatus)
	mux.HandleFunc("/api/stream", h.HandleStream)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func toView(rec domain.Record) MessageView {
	return MessageView{TS: rec.Clock(), Topic: rec.Topic, Msg: rec.Payload}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func (h *RestHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recent := h.query.ListRecent()
	views := make([]MessageView, 0, len(recent))
	for _, rec := range recent {
		views = append(views, toView(rec))
	}

	writeJSON(w, HistoryResponse{Mensajes: views})
}

func (h *RestHandler) HandlePeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, ok := h.query.PeekLatest(r.URL.Query().Get("topic"))
	if !ok {
		// nothing yet (or unknown topic): empty object, not an error
		writeJSON(w, struct{}{})
		return
	}

	writeJSON(w, toView(rec))
}

func (h *RestHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := h.query.Stats()
	writeJSON(w, StatusResponse{
		ClientID: h.broker.ClientID,
		Broker:   h.broker.URL,
		State:    h.monitor.State().String(),
		Topics:   h.query.Topics(),
		History:  HistoryStats{Size: st.HistorySize, Capacity: st.HistoryCapacity},
		Stats:    metrics.GetSnapshot(),
	})
}
