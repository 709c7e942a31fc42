package www

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"xmixing/messaging"
)

type scannerStatusResponse struct {
	messaging.Status
	LastScan *messaging.ScanEvent  `json:"last_scan"`
	History  []messaging.ScanEvent `json:"history"`
}

func (h *Handlers) apiScannerStatus(w http.ResponseWriter, r *http.Request) {
	m := h.engine.Scanner()
	h.jsonOK(w, scannerStatusResponse{
		Status:   m.Status(),
		LastScan: m.LastScan(),
		History:  m.History(),
	})
}

type publishRequest struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handlers) apiScannerPublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		h.jsonError(w, "topic is required", http.StatusBadRequest)
		return
	}
	if len(req.Payload) == 0 || bytes.Equal(req.Payload, []byte("null")) {
		h.jsonError(w, "payload is required", http.StatusBadRequest)
		return
	}

	var payload any = []byte(req.Payload)
	if bytes.HasPrefix(bytes.TrimSpace(req.Payload), []byte(`"`)) {
		var s string
		if err := json.Unmarshal(req.Payload, &s); err != nil {
			h.jsonError(w, "invalid payload", http.StatusBadRequest)
			return
		}
		payload = s
	}

	m := h.engine.Scanner()
	connected := m.IsConnected()
	if err := m.Publish(req.Topic, payload); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonOK(w, map[string]any{"published": connected})
}

func (h *Handlers) apiScannerConnect(w http.ResponseWriter, r *http.Request) {
	m := h.engine.Scanner()
	m.Connect()
	h.jsonOK(w, m.Status())
}

func (h *Handlers) apiScannerDisconnect(w http.ResponseWriter, r *http.Request) {
	m := h.engine.Scanner()
	m.Disconnect()
	h.jsonOK(w, m.Status())
}

func (h *Handlers) apiSession(w http.ResponseWriter, r *http.Request) {
	s := h.engine.Session()
	h.jsonOK(w, map[string]any{
		"is_authenticated": s.IsAuthenticated(),
		"user":             s.Identity(),
	})
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":      "ok",
		"scanner":     h.engine.Scanner().IsConnected(),
		"sse_clients": h.eventHub.ClientCount(),
		"storage":     h.engine.AppConfig().Session.Storage,
	}
	if db := h.engine.DB(); db != nil {
		resp["database"] = db.Driver()
		if err := db.PingContext(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database_error"] = err.Error()
		}
	}
	h.jsonOK(w, resp)
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
