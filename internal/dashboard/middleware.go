package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"heart-insights/internal/common"
	"heart-insights/internal/i18n"
	"heart-insights/internal/patient"
	"heart-insights/internal/session"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type ctxKey int

const sessionKey ctxKey = iota

// statusRecorder captures the response code. It forwards Hijack so that
// WebSocket upgrades keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rd *RiskDashboard) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		if rd.deps.Metrics != nil {
			rd.deps.Metrics.RequestObserve(route, rec.status, elapsed.Seconds())
		}
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("Request served")
	})
}

// withSession resolves the caller's session and echoes its id back as both a
// header and a cookie.
func (rd *RiskDashboard) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.SessionHeader)
		if id == "" {
			if c, err := r.Cookie(common.SessionCookie); err == nil {
				id = c.Value
			}
		}

		st, created, err := rd.deps.Sessions.Resolve(id)
		if err != nil {
			log.Error().Err(err).Msg("Failed to resolve session")
			rd.internalError(w, i18n.For(i18n.DefaultLocale))
			return
		}
		if created || st.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     common.SessionCookie,
				Value:    st.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(common.SessionHeader, st.ID)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, st)))
	})
}

// sessionFrom returns the state resolved for this request.
func sessionFrom(r *http.Request) session.State {
	st, _ := r.Context().Value(sessionKey).(session.State)
	return st
}

// translator picks the request locale: an explicit ?locale= wins over the
// session's preference.
func translator(r *http.Request) *i18n.Catalog {
	if l := r.URL.Query().Get("locale"); i18n.IsSupported(l) {
		return i18n.For(l)
	}
	return i18n.For(sessionFrom(r).Locale)
}

// apiError is the JSON error body.
type apiError struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, t i18n.Translator, key string, args ...any) {
	writeJSON(w, status, apiError{Error: key, Message: t.Format(key, args...)})
}

func (rd *RiskDashboard) internalError(w http.ResponseWriter, t i18n.Translator) {
	if rd.deps.Metrics != nil {
		rd.deps.Metrics.ErrorsTotal().Inc()
	}
	writeError(w, http.StatusInternalServerError, t, "internal_error")
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeRecord reads a complete patient record from the request body.
func decodeRecord(r *http.Request) (patient.Record, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return patient.Record{}, err
	}
	return patient.DecodeJSON(data)
}

// recordError describes a rejected record, listing absent fields if any.
func recordError(t i18n.Translator, err error) apiError {
	e := apiError{Error: "invalid_input_error", Message: t.Format("invalid_input_error", err)}
	var mf *patient.MissingFieldsError
	if errors.As(err, &mf) {
		e.Missing = mf.Fields
	}
	return e
}
