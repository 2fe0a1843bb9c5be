package dashboard

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"heart-insights/internal/advice"
	"heart-insights/internal/common"
	"heart-insights/internal/i18n"
	"heart-insights/internal/insights"
	"heart-insights/internal/ml"
	"heart-insights/internal/patient"
	"heart-insights/internal/resources"
	"heart-insights/internal/session"
	"heart-insights/internal/whatif"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	defaultHistoryLimit = 20
	maxMultipartMemory  = 8 << 20
)

type sessionUpdate struct {
	Locale *string `json:"locale"`
	Theme  *string `json:"theme"`
}

func (rd *RiskDashboard) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r))
}

func (rd *RiskDashboard) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	var req sessionUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, t, "invalid_input_error", err)
		return
	}
	if req.Locale != nil && !i18n.IsSupported(*req.Locale) {
		writeError(w, http.StatusBadRequest, t, "invalid_input_error", "unsupported locale "+strconv.Quote(*req.Locale))
		return
	}
	if req.Theme != nil && !session.Theme(*req.Theme).Valid() {
		writeError(w, http.StatusBadRequest, t, "invalid_input_error", "unknown theme "+strconv.Quote(*req.Theme))
		return
	}

	st, err := rd.deps.Sessions.Update(sessionFrom(r).ID, func(s *session.State) error {
		if req.Locale != nil {
			s.Locale = *req.Locale
		}
		if req.Theme != nil {
			s.Theme = session.Theme(*req.Theme)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to update session")
		rd.internalError(w, t)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleDeleteSession forgets the session and its history and clears the
// cookie. The next request starts a new session.
func (rd *RiskDashboard) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := rd.deps.Sessions.Delete(sessionFrom(r).ID); err != nil {
		log.Error().Err(err).Msg("Failed to delete session")
		rd.internalError(w, translator(r))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: common.SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.Header().Del(common.SessionHeader)
	w.WriteHeader(http.StatusNoContent)
}

func (rd *RiskDashboard) handleHistory(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, t, "invalid_input_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	h, err := rd.deps.Sessions.History(sessionFrom(r).ID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read prediction history")
		rd.internalError(w, t)
		return
	}
	if h == nil {
		h = []session.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": h})
}

type fieldView struct {
	patient.Hint
	Description string `json:"description"`
}

func (rd *RiskDashboard) handleForm(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	hints := patient.FormHints()
	fields := make([]fieldView, len(hints))
	for i, h := range hints {
		fields[i] = fieldView{Hint: h, Description: t.FeatureDescription(h.Column)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":    t.T("patient_details"),
		"fields":   fields,
		"defaults": patient.DefaultRecord(),
	})
}

type warningView struct {
	patient.Warning
	Message string `json:"message"`
}

type predictResponse struct {
	Result     ml.PredictionResult `json:"result"`
	Verdict    string              `json:"verdict"`
	Confidence float64             `json:"confidence"`
	Warnings   []warningView       `json:"warnings"`
	ModelInfo  string              `json:"model_info"`
}

func (rd *RiskDashboard) handlePredict(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	rec, err := decodeRecord(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, recordError(t, err))
		return
	}

	res, err := rd.deps.Predictor.PredictOne(rec)
	if err != nil {
		writeError(w, http.StatusBadRequest, t, "invalid_input_error", err)
		return
	}
	if _, err := rd.deps.Sessions.RecordPrediction(sessionFrom(r).ID, res); err != nil {
		log.Error().Err(err).Msg("Failed to store prediction")
		rd.internalError(w, t)
		return
	}

	resp := predictResponse{
		Result:     res,
		Verdict:    verdict(t, res.Label),
		Confidence: res.Probabilities[res.Label],
		Warnings:   []warningView{},
		ModelInfo:  rd.modelInfo(t),
	}
	for _, wn := range rec.Warnings() {
		resp.Warnings = append(resp.Warnings, warningView{Warning: wn, Message: t.T(wn.Key)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rd *RiskDashboard) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	last := sessionFrom(r).LastPrediction
	if last == nil {
		writeError(w, http.StatusConflict, t, "rec_warning_nodata")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":  t.T("rec_title"),
		"report": advice.Build(last.Input, last.Label, t),
	})
}

func (rd *RiskDashboard) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	scenario, err := decodeRecord(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, recordError(t, err))
		return
	}

	resp, status, key, err := rd.compare(t, sessionFrom(r).LastPrediction, scenario)
	if err != nil {
		writeError(w, status, t, key, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type sweepRequest struct {
	Feature string    `json:"feature"`
	Values  []float64 `json:"values"`
}

func (rd *RiskDashboard) handleSweep(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	var req sweepRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, t, "invalid_input_error", err)
		return
	}

	resp, status, key, err := rd.sweep(t, sessionFrom(r).LastPrediction, req)
	if err != nil {
		writeError(w, status, t, key, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type compareResponse struct {
	whatif.Comparison
	Verdict    string `json:"verdict"`
	DeltaLabel string `json:"delta_label"`
}

type sweepResponse struct {
	whatif.Curve
	Title string `json:"title"`
	YAxis string `json:"y_axis"`
}

// compare and sweep are shared by the REST and WebSocket handlers. On failure
// they return the status and message key to report.
func (rd *RiskDashboard) compare(t i18n.Translator, base *ml.PredictionResult, scenario patient.Record) (*compareResponse, int, string, error) {
	cmp, err := whatif.Compare(rd.deps.Predictor, base, scenario)
	if errors.Is(err, whatif.ErrNoBaseline) {
		return nil, http.StatusConflict, "whatif_nodata", err
	}
	if err != nil {
		return nil, http.StatusBadRequest, "invalid_input_error", err
	}
	return &compareResponse{
		Comparison: cmp,
		Verdict:    verdict(t, cmp.Scenario.Label),
		DeltaLabel: t.T("whatif_delta_label"),
	}, http.StatusOK, "", nil
}

func (rd *RiskDashboard) sweep(t i18n.Translator, base *ml.PredictionResult, req sweepRequest) (*sweepResponse, int, string, error) {
	curve, err := whatif.Sweep(rd.deps.Predictor, base, req.Feature, req.Values)
	if errors.Is(err, whatif.ErrNoBaseline) {
		return nil, http.StatusConflict, "whatif_nodata", err
	}
	if err != nil {
		return nil, http.StatusBadRequest, "invalid_input_error", err
	}
	return &sweepResponse{
		Curve: curve,
		Title: t.Format("plot_what_if_title", req.Feature),
		YAxis: t.T("plot_what_if_yaxis"),
	}, http.StatusOK, "", nil
}

func (rd *RiskDashboard) handleModels(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"active":     rd.deps.Predictor.ModelName(),
		"model_info": rd.modelInfo(t),
		"title":      t.T("model_comparison_header"),
		"models":     insights.CompareModels(rd.deps.Models),
	})
}

func (rd *RiskDashboard) handleImportance(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"model":    rd.deps.Predictor.ModelName(),
		"title":    t.T("feature_importance_title"),
		"features": rd.deps.Predictor.FeatureImportance(),
	})
}

type insightCache struct {
	correlations insights.CorrelationMatrix
	trends       insights.Trends
	trendsErr    error
}

// cached computes the dataset-wide views once; the dataset never changes.
func (rd *RiskDashboard) cached() *insightCache {
	rd.insightsOnce.Do(func() {
		c := &insightCache{correlations: insights.Correlations(rd.deps.Dataset.Full)}
		c.trends, c.trendsErr = insights.AgeTrends(rd.deps.Dataset.Full)
		rd.insights = c
	})
	return rd.insights
}

func (rd *RiskDashboard) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"title":  t.T("corr_heatmap_title"),
		"matrix": rd.cached().correlations,
	})
}

func (rd *RiskDashboard) handleHistogram(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	q := r.URL.Query()
	feature := q.Get("feature")
	if feature == "" {
		feature = patient.ColAge
	}
	group := q.Get("group")
	if group == "" {
		group = patient.ColTarget
	}
	bins := 0
	if raw := q.Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, t, "invalid_input_error", "bins must be between 1 and 200")
			return
		}
		bins = n
	}

	h, err := insights.NewHistogram(rd.deps.Dataset.Full, feature, group, bins)
	if err != nil {
		writeError(w, http.StatusBadRequest, t, "invalid_input_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":     t.Format("hist_title", feature, group),
		"histogram": h,
	})
}

func (rd *RiskDashboard) handleTrends(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	c := rd.cached()
	if c.trendsErr != nil {
		log.Error().Err(c.trendsErr).Msg("Failed to compute age trends")
		rd.internalError(w, t)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":  t.T("trends_title"),
		"intro":  t.T("trends_intro"),
		"trends": c.trends,
	})
}

func (rd *RiskDashboard) handleScatter(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	q := r.URL.Query()
	s, err := insights.NewScatter(rd.deps.Dataset.Full, q.Get("x"), q.Get("y"))
	if err != nil {
		writeError(w, http.StatusBadRequest, t, "invalid_input_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":   t.T("trends_feature_by_age_header"),
		"scatter": s,
	})
}

func (rd *RiskDashboard) handleDrift(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	dd := rd.deps.Predictor.Drift()
	if dd == nil {
		writeError(w, http.StatusNotFound, t, "drift_disabled")
		return
	}
	writeJSON(w, http.StatusOK, dd.Report())
}

func (rd *RiskDashboard) handleBatch(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	if rd.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rd.opts.MaxUploadBytes)
	}

	src, closeSrc, err := uploadSource(r)
	if err != nil {
		rd.batchError(w, t, err)
		return
	}
	defer closeSrc()

	var buf bytes.Buffer
	res, err := rd.deps.Predictor.ScoreCSV(src, &buf)
	if err != nil {
		rd.batchError(w, t, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": common.PredictionsFileName}))
	w.Header().Set("X-Batch-Rows", strconv.Itoa(len(res.Rows)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Warn().Err(err).Msg("Failed to send batch predictions")
	}
}

// uploadSource returns the CSV of a multipart "file" field, or the raw body.
func uploadSource(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, func() {}, nil
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, nil, err
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func (rd *RiskDashboard) batchError(w http.ResponseWriter, t i18n.Translator, err error) {
	var mismatch *ml.SchemaMismatchError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &mismatch):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{
			Error:   "missing_cols_error",
			Message: t.Format("missing_cols_error", strings.Join(mismatch.Missing, ", ")),
			Missing: mismatch.Missing,
		})
		return
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, t, "upload_too_large_error", tooLarge.Limit)
	default:
		writeError(w, http.StatusBadRequest, t, "file_processing_error", err)
	}
	if rd.deps.Metrics != nil {
		rd.deps.Metrics.BatchFailures().Inc()
	}
	log.Warn().Err(err).Msg("Batch upload rejected")
}

func (rd *RiskDashboard) handleResources(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"title":      t.T("res_title"),
		"intro":      t.T("res_intro"),
		"cities":     rd.deps.Resources.Names(),
		"programmes": resources.Programmes(t),
	})
}

func (rd *RiskDashboard) handleCity(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	name := mux.Vars(r)["city"]
	city, err := rd.deps.Resources.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, t, "not_found_error", name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"city":     city,
		"sections": city.Sections(t),
	})
}

type localeView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (rd *RiskDashboard) handleCatalog(w http.ResponseWriter, r *http.Request) {
	t := translator(r)
	locales := make([]localeView, 0, len(i18n.Locales()))
	for _, code := range i18n.Locales() {
		locales = append(locales, localeView{Code: code, Name: i18n.For(code).T("language_name")})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locale":               t.Locale(),
		"locales":              locales,
		"strings":              t.Strings(),
		"feature_descriptions": t.FeatureDescriptions(),
	})
}

func (rd *RiskDashboard) modelInfo(t i18n.Translator) string {
	e := rd.deps.Predictor.Entry()
	return t.Format("model_info", e.Name, e.Test.Accuracy*100)
}

func verdict(t i18n.Translator, label int) string {
	if label == 1 {
		return t.T("disease")
	}
	return t.T("no_disease")
}
