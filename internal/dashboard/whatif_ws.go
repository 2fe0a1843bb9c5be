package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"heart-insights/internal/i18n"
	"heart-insights/internal/patient"
	"heart-insights/internal/session"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 64 << 10
)

// wsRequest is one client message on /ws/whatif. Type is "compare" (with
// Scenario) or "sweep" (with Feature and optional Values).
type wsRequest struct {
	Type     string          `json:"type"`
	Scenario json.RawMessage `json:"scenario,omitempty"`
	Feature  string          `json:"feature,omitempty"`
	Values   []float64       `json:"values,omitempty"`
}

type wsResponse struct {
	Type   string    `json:"type"`
	Result any       `json:"result,omitempty"`
	Error  *apiError `json:"error,omitempty"`
}

// handleWhatIfSocket answers what-if requests over a WebSocket. The baseline
// is re-read from the session store on every message so that predictions
// made meanwhile over REST are picked up.
func (rd *RiskDashboard) handleWhatIfSocket(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r)
	t := translator(r)

	conn, err := rd.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	rd.clientsMu.Lock()
	rd.clients[conn] = true
	rd.clientsMu.Unlock()
	if rd.deps.Metrics != nil {
		rd.deps.Metrics.WSConnections().Inc()
	}
	log.Debug().Str("session", st.ID).Msg("What-if stream opened")

	defer func() {
		rd.clientsMu.Lock()
		delete(rd.clients, conn)
		rd.clientsMu.Unlock()
		if rd.deps.Metrics != nil {
			rd.deps.Metrics.WSConnections().Dec()
		}
		log.Debug().Str("session", st.ID).Msg("What-if stream closed")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("What-if stream read failed")
			}
			return
		}

		resp := rd.answer(t, st.ID, data)
		out, err := json.Marshal(resp)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal what-if response")
			return
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			log.Warn().Err(err).Msg("Failed to send what-if response")
			return
		}
	}
}

func (rd *RiskDashboard) answer(t i18n.Translator, id string, data []byte) wsResponse {
	fail := func(typ, key string, args ...any) wsResponse {
		return wsResponse{Type: typ, Error: &apiError{Error: key, Message: t.Format(key, args...)}}
	}

	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fail("error", "invalid_input_error", err)
	}

	st, err := rd.deps.Sessions.Store().Get(id)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		log.Error().Err(err).Msg("Failed to load session for what-if")
		return fail(req.Type, "internal_error")
	}

	switch req.Type {
	case "compare":
		if len(req.Scenario) == 0 || string(req.Scenario) == "null" {
			return fail(req.Type, "invalid_input_error", "scenario is required")
		}
		scenario, err := patient.DecodeJSON(req.Scenario)
		if err != nil {
			e := recordError(t, err)
			return wsResponse{Type: req.Type, Error: &e}
		}
		resp, _, key, err := rd.compare(t, st.LastPrediction, scenario)
		if err != nil {
			return fail(req.Type, key, err)
		}
		return wsResponse{Type: req.Type, Result: resp}
	case "sweep":
		resp, _, key, err := rd.sweep(t, st.LastPrediction, sweepRequest{Feature: req.Feature, Values: req.Values})
		if err != nil {
			return fail(req.Type, key, err)
		}
		return wsResponse{Type: req.Type, Result: resp}
	default:
		return fail("error", "invalid_input_error", "unknown message type "+req.Type)
	}
}
