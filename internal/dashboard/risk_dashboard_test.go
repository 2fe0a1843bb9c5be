package dashboard

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"heart-insights/internal/common"
	"heart-insights/internal/dataset"
	"heart-insights/internal/metrics"
	"heart-insights/internal/ml"
	"heart-insights/internal/patient"
	"heart-insights/internal/resources"
	"heart-insights/internal/session"
	"heart-insights/internal/whatif"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixtureOnce   sync.Once
	fixtureDS     *dataset.Dataset
	fixtureModels ml.Models
	fixtureErr    error
)

func trained(t *testing.T) (*dataset.Dataset, ml.Models) {
	t.Helper()
	fixtureOnce.Do(func() {
		var buf bytes.Buffer
		if fixtureErr = dataset.WriteCSV(&buf, dataset.Synthetic(120, 5)); fixtureErr != nil {
			return
		}
		if fixtureDS, fixtureErr = dataset.Read(&buf); fixtureErr != nil {
			return
		}
		cfg := ml.DefaultTrainConfig()
		cfg.ForestTrees = 10
		fixtureModels, fixtureErr = ml.TrainModels(cfg, fixtureDS.Features.Rows, fixtureDS.Labels, nil)
	})
	require.NoError(t, fixtureErr)
	return fixtureDS, fixtureModels
}

type testEnv struct {
	rd      *RiskDashboard
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	ds, models := trained(t)

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	wrapper := metrics.NewWrapper(m)

	p, err := ml.NewPredictor(models, common.ModelRandomForest, wrapper)
	require.NoError(t, err)
	p.TrackDrift(ml.NewDriftDetector(patient.FeatureColumns, ds.Features.Rows, ml.DefaultDriftWindow))

	dir, err := resources.Default()
	require.NoError(t, err)

	rd := NewRiskDashboard(Deps{
		Predictor: p,
		Models:    models,
		Dataset:   ds,
		Sessions:  session.NewManager(session.NewMemoryStore(0), "en", wrapper.ActiveSessions()),
		Resources: dir,
		Metrics:   wrapper,
		Gatherer:  reg,
	}, Options{ListenAddr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second, MaxUploadBytes: maxUpload})
	return &testEnv{rd: rd, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, sessionID string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if sessionID != "" {
		req.Header.Set(common.SessionHeader, sessionID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.rd.Handler().ServeHTTP(rec, req)
	return rec
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func newSession(t *testing.T, e *testEnv) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(common.SessionHeader)
	require.NotEmpty(t, id)
	return id
}

func batchCSV(t *testing.T, columns []string, rows [][]float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(columns))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		require.NoError(t, w.Write(cells))
	}
	w.Flush()
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, 0)
	rec := e.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, common.ModelRandomForest, body["model"])
	assert.Empty(t, rec.Header().Get(common.SessionHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, 0)
	e.do(t, http.MethodGet, "/health", "", nil)

	rec := e.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "heart_http_requests_total")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.HTTPRequests.WithLabelValues("/health", "200")))
}

func TestSessionResolution(t *testing.T) {
	e := newTestEnv(t, 0)

	first := e.do(t, http.MethodGet, "/api/session", "", nil)
	id := first.Header().Get(common.SessionHeader)
	require.NotEmpty(t, id)

	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, common.SessionCookie, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)

	// the header is honoured
	again := e.do(t, http.MethodGet, "/api/session", id, nil)
	assert.Equal(t, id, again.Header().Get(common.SessionHeader))
	assert.Empty(t, again.Result().Cookies())

	// so is the cookie
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: common.SessionCookie, Value: id})
	rec := httptest.NewRecorder()
	e.rd.Handler().ServeHTTP(rec, req)
	assert.Equal(t, id, decode[session.State](t, rec).ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.ActiveSessions))
}

func TestUpdateSession(t *testing.T) {
	e := newTestEnv(t, 0)
	id := newSession(t, e)

	rec := e.do(t, http.MethodPut, "/api/session", id, []byte(`{"locale":"mr","theme":"Dark"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[session.State](t, rec)
	assert.Equal(t, "mr", st.Locale)
	assert.Equal(t, session.ThemeDark, st.Theme)

	catalog := decode[map[string]any](t, e.do(t, http.MethodGet, "/api/i18n", id, nil))
	assert.Equal(t, "mr", catalog["locale"])

	tests := []struct {
		name string
		body string
	}{
		{"bad locale", `{"locale":"fr"}`},
		{"bad theme", `{"theme":"Neon"}`},
		{"unknown field", `{"colour":"red"}`},
		{"malformed", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPut, "/api/session", id, []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_input_error", decode[apiError](t, rec).Error)
		})
	}
}

func TestForm(t *testing.T) {
	e := newTestEnv(t, 0)
	rec := e.do(t, http.MethodGet, "/api/form?locale=hi", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Fields   []fieldView    `json:"fields"`
		Defaults patient.Record `json:"defaults"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Fields, patient.NumFeatures)
	assert.Equal(t, patient.ColAge, body.Fields[0].Column)
	assert.NotEmpty(t, body.Fields[0].Description)
	assert.Equal(t, patient.DefaultRecord(), body.Defaults)
}

func TestPredictAndRecommend(t *testing.T) {
	e := newTestEnv(t, 0)
	id := newSession(t, e)

	rec := e.do(t, http.MethodGet, "/api/recommendations", id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "rec_warning_nodata", decode[apiError](t, rec).Error)

	input := patient.DefaultRecord()
	input.Age = 15
	input.Cholesterol = 280
	input.Smoke = patient.Yes

	rec = e.do(t, http.MethodPost, "/api/predict", id, mustJSON(t, input))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[predictResponse](t, rec)
	assert.Equal(t, input, resp.Result.Input)
	assert.InDelta(t, 1.0, resp.Result.Probabilities[0]+resp.Result.Probabilities[1], 1e-9)
	assert.Equal(t, resp.Result.Probabilities[resp.Result.Label], resp.Confidence)
	assert.Contains(t, resp.ModelInfo, common.ModelRandomForest)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "age_warning", resp.Warnings[0].Key)

	rec = e.do(t, http.MethodGet, "/api/recommendations", id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs struct {
		Report struct {
			Recommendations []string `json:"recommendations"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	assert.GreaterOrEqual(t, len(recs.Report.Recommendations), 2)

	history := decode[map[string][]session.HistoryEntry](t, e.do(t, http.MethodGet, "/api/session/history", id, nil))
	assert.Len(t, history["history"], 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.PredictionsTotal.WithLabelValues(ml.KindSingle)))
}

func TestPredictRejectsBadInput(t *testing.T) {
	e := newTestEnv(t, 0)
	id := newSession(t, e)

	bad := patient.DefaultRecord()
	bad.RestingECG = 7

	tests := []struct {
		name string
		body []byte
	}{
		{"malformed", []byte(`{"age":`)},
		{"unknown field", []byte(`{"height": 180}`)},
		{"invalid code", mustJSON(t, bad)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/predict", id, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_input_error", decode[apiError](t, rec).Error)
		})
	}

	// nothing was stored
	rec := e.do(t, http.MethodGet, "/api/recommendations", id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPredictRejectsMissingFields(t *testing.T) {
	e := newTestEnv(t, 0)
	id := newSession(t, e)

	partial := []byte(`{"sex":1,"chest_pain_type":1,"resting_ecg":0,"st_slope":1}`)
	rec := e.do(t, http.MethodPost, "/api/predict", id, partial)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[apiError](t, rec)
	assert.Equal(t, "invalid_input_error", body.Error)
	assert.Contains(t, body.Missing, "age")
	assert.Contains(t, body.Missing, "cholesterol")
	assert.NotContains(t, body.Missing, "sex")

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodGet, "/api/recommendations", id, nil).Code)
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.PredictionsTotal.WithLabelValues(ml.KindSingle)))

	// what-if scenarios follow the same rule
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/predict", id, mustJSON(t, patient.DefaultRecord())).Code)
	rec = e.do(t, http.MethodPost, "/api/whatif", id, partial)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[apiError](t, rec).Missing, "age")
}

func TestSessionsAreIsolated(t *testing.T) {
	e := newTestEnv(t, 0)
	a, b := newSession(t, e), newSession(t, e)
	require.NotEqual(t, a, b)

	rec := e.do(t, http.MethodPost, "/api/predict", a, mustJSON(t, patient.DefaultRecord()))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/recommendations", a, nil).Code)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodGet, "/api/recommendations", b, nil).Code)
}

func TestDeleteSession(t *testing.T) {
	e := newTestEnv(t, 0)
	id := newSession(t, e)
	other := newSession(t, e)

	rec := e.do(t, http.MethodPost, "/api/predict", id, mustJSON(t, patient.DefaultRecord()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.ActiveSessions))

	rec = e.do(t, http.MethodDelete, "/api/session", id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get(common.SessionHeader))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, common.SessionCookie, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.ActiveSessions))

	// the id comes back as a fresh session
	st := decode[session.State](t, e.do(t, http.MethodGet, "/api/session", id, nil))
	assert.Equal(t, id, st.ID)
	assert.Nil(t, st.LastPrediction)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodGet, "/api/recommendations", id, nil).Code)

	history := decode[map[string][]session.HistoryEntry](t, e.do(t, http.MethodGet, "/api/session/history", id, nil))
	assert.Empty(t, history["history"])

	assert.Equal(t, other, decode[session.State](t, e.do(t, http.MethodGet, "/api/session", other, nil)).ID)
}

func TestWhatIf(t *testing.T) {
	e := newTestEnv(t, 0)
	id := newSession(t, e)

	scenario := patient.DefaultRecord()
	scenario.Age = 70

	rec := e.do(t, http.MethodPost, "/api/whatif", id, mustJSON(t, scenario))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "whatif_nodata", decode[apiError](t, rec).Error)

	base := decode[predictResponse](t, e.do(t, http.MethodPost, "/api/predict", id, mustJSON(t, patient.DefaultRecord())))

	rec = e.do(t, http.MethodPost, "/api/whatif", id, mustJSON(t, scenario))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cmp := decode[compareResponse](t, rec)
	assert.Equal(t, base.Result.Disease(), cmp.Base.Disease())
	assert.InDelta(t, cmp.Scenario.Disease()-cmp.Base.Disease(), cmp.Delta, 1e-12)
	assert.NotEmpty(t, cmp.Verdict)

	// what-if scoring does not replace the baseline
	st := decode[session.State](t, e.do(t, http.MethodGet, "/api/session", id, nil))
	assert.Equal(t, patient.DefaultRecord(), st.LastPrediction.Input)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.PredictionsTotal.WithLabelValues(ml.KindWhatIf)))

	rec = e.do(t, http.MethodPost, "/api/whatif/sweep", id, []byte(`{"feature":"cholesterol"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sweep := decode[sweepResponse](t, rec)
	assert.Len(t, sweep.Points, whatif.DefaultSweepPoints)
	assert.Equal(t, "Prediction Probability vs. cholesterol", sweep.Title)

	rec = e.do(t, http.MethodPost, "/api/whatif/sweep", id, []byte(`{"feature":"height"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelViews(t *testing.T) {
	e := newTestEnv(t, 0)

	var models struct {
		Active string `json:"active"`
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	rec := e.do(t, http.MethodGet, "/api/models", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.Equal(t, common.ModelRandomForest, models.Active)
	assert.Len(t, models.Models, 3)

	var imp struct {
		Features []ml.FeatureScore `json:"features"`
	}
	rec = e.do(t, http.MethodGet, "/api/importance", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imp))
	require.Len(t, imp.Features, patient.NumFeatures)
	for i := 1; i < len(imp.Features); i++ {
		assert.LessOrEqual(t, imp.Features[i-1].Score, imp.Features[i].Score)
	}
}

func TestInsightViews(t *testing.T) {
	e := newTestEnv(t, 0)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"correlations", "/api/insights/correlations", http.StatusOK},
		{"histogram default", "/api/insights/histogram", http.StatusOK},
		{"histogram grouped", "/api/insights/histogram?feature=cholesterol&group=sex&bins=10", http.StatusOK},
		{"histogram bad group", "/api/insights/histogram?feature=age&group=oldpeak", http.StatusBadRequest},
		{"histogram bad bins", "/api/insights/histogram?bins=0", http.StatusBadRequest},
		{"trends", "/api/trends", http.StatusOK},
		{"scatter default", "/api/trends/scatter", http.StatusOK},
		{"scatter custom", "/api/trends/scatter?x=age&y=max%20heart%20rate", http.StatusOK},
		{"scatter unknown", "/api/trends/scatter?x=height", http.StatusBadRequest},
		{"drift", "/api/drift", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, tt.path, "", nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.True(t, json.Valid(rec.Body.Bytes()))
		})
	}

	var corr struct {
		Matrix struct {
			Columns []string    `json:"columns"`
			Values  [][]*float64 `json:"values"`
		} `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal(e.do(t, http.MethodGet, "/api/insights/correlations", "", nil).Body.Bytes(), &corr))
	assert.Contains(t, corr.Matrix.Columns, patient.ColSmoke)
	// smoke is back-filled with zeros, so its correlations are null
	smoke := len(corr.Matrix.Columns) - 1
	assert.Equal(t, patient.ColSmoke, corr.Matrix.Columns[smoke])
	assert.Nil(t, corr.Matrix.Values[0][smoke])
	require.NotNil(t, corr.Matrix.Values[0][0])
	assert.InDelta(t, 1.0, *corr.Matrix.Values[0][0], 1e-9)
}

func TestBatch(t *testing.T) {
	e := newTestEnv(t, 0)
	ds, _ := trained(t)
	id := newSession(t, e)

	body := batchCSV(t, patient.FeatureColumns, ds.Features.Rows[:3])
	req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set(common.SessionHeader, id)
	rec := httptest.NewRecorder()
	e.rd.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), common.PredictionsFileName)
	assert.Equal(t, "3", rec.Header().Get("X-Batch-Rows"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{common.ColumnPrediction, common.ColumnProbNoDisease, common.ColumnProbDisease},
		records[0][patient.NumFeatures:])
}

func TestBatchMultipart(t *testing.T) {
	e := newTestEnv(t, 0)
	ds, _ := trained(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "patients.csv")
	require.NoError(t, err)
	_, err = fw.Write(batchCSV(t, patient.FeatureColumns, ds.Features.Rows[:2]))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/batch", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.rd.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get("X-Batch-Rows"))
}

func TestBatchErrors(t *testing.T) {
	e := newTestEnv(t, 2048)
	ds, _ := trained(t)

	withoutAge := patient.FeatureColumns[1:]
	rows := make([][]float64, 2)
	for i := range rows {
		rows[i] = ds.Features.Rows[i][1:]
	}

	big := batchCSV(t, patient.FeatureColumns, ds.Features.Rows)

	tests := []struct {
		name   string
		body   string
		status int
		key    string
	}{
		{"missing column", string(batchCSV(t, withoutAge, rows)), http.StatusUnprocessableEntity, "missing_cols_error"},
		{"non numeric", strings.Join(patient.FeatureColumns, ",") + "\n" + strings.Repeat("x,", patient.NumFeatures-1) + "x\n", http.StatusBadRequest, "file_processing_error"},
		{"empty", "", http.StatusBadRequest, "file_processing_error"},
		{"header only", strings.Join(patient.FeatureColumns, ",") + "\n", http.StatusBadRequest, "file_processing_error"},
		{"too large", string(big), http.StatusRequestEntityTooLarge, "upload_too_large_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/batch", "", []byte(tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			apiErr := decode[apiError](t, rec)
			assert.Equal(t, tt.key, apiErr.Error)
			if tt.key == "missing_cols_error" {
				assert.Equal(t, []string{patient.ColAge}, apiErr.Missing)
				assert.Contains(t, apiErr.Message, patient.ColAge)
			}
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.SchemaMismatches))
	assert.Equal(t, 4.0, testutil.ToFloat64(e.metrics.BatchFailures))
}

func TestResources(t *testing.T) {
	e := newTestEnv(t, 0)

	var list struct {
		Cities     []string `json:"cities"`
		Programmes []string `json:"programmes"`
	}
	require.NoError(t, json.Unmarshal(e.do(t, http.MethodGet, "/api/resources", "", nil).Body.Bytes(), &list))
	assert.Equal(t, []string{"Mumbai", "Delhi-NCR", "Bengaluru", "Chennai"}, list.Cities)
	assert.Len(t, list.Programmes, 2)

	rec := e.do(t, http.MethodGet, "/api/resources/chennai", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var city struct {
		City     resources.City      `json:"city"`
		Sections []resources.Section `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &city))
	assert.Equal(t, "Chennai", city.City.Name)
	assert.NotEmpty(t, city.Sections)

	rec = e.do(t, http.MethodGet, "/api/resources/Atlantis", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_error", decode[apiError](t, rec).Error)
}

func TestCatalog(t *testing.T) {
	e := newTestEnv(t, 0)

	var body struct {
		Locale  string            `json:"locale"`
		Locales []localeView      `json:"locales"`
		Strings map[string]string `json:"strings"`
	}
	require.NoError(t, json.Unmarshal(e.do(t, http.MethodGet, "/api/i18n?locale=hi", "", nil).Body.Bytes(), &body))
	assert.Equal(t, "hi", body.Locale)
	assert.Len(t, body.Locales, 3)
	assert.Equal(t, "हिन्दी", body.Strings["language_name"])
	// English fills keys missing from the Hindi table
	assert.NotEmpty(t, body.Strings["rec_none"])
}

func TestWhatIfSocket(t *testing.T) {
	e := newTestEnv(t, 0)
	srv := httptest.NewServer(e.rd.Handler())
	defer srv.Close()

	id := newSession(t, e)
	header := http.Header{}
	header.Set(common.SessionHeader, id)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/whatif"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	scenario := patient.DefaultRecord()
	scenario.Oldpeak = 3

	var resp struct {
		Type   string          `json:"type"`
		Result json.RawMessage `json:"result"`
		Error  *apiError       `json:"error"`
	}

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "compare", Scenario: mustJSON(t, scenario)}))
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "whatif_nodata", resp.Error.Error)

	// a prediction over REST becomes the baseline of the open stream
	rec := e.do(t, http.MethodPost, "/api/predict", id, mustJSON(t, patient.DefaultRecord()))
	require.Equal(t, http.StatusOK, rec.Code)

	resp.Error = nil
	require.NoError(t, conn.WriteJSON(wsRequest{Type: "compare", Scenario: mustJSON(t, scenario)}))
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error)
	assert.Equal(t, "compare", resp.Type)
	var cmp compareResponse
	require.NoError(t, json.Unmarshal(resp.Result, &cmp))
	assert.Equal(t, 3.0, cmp.Scenario.Input.Oldpeak)

	resp.Error = nil
	require.NoError(t, conn.WriteJSON(wsRequest{Type: "sweep", Feature: patient.ColSex}))
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error)
	var curve sweepResponse
	require.NoError(t, json.Unmarshal(resp.Result, &curve))
	assert.Len(t, curve.Points, 2)

	resp.Error = nil
	require.NoError(t, conn.WriteJSON(wsRequest{Type: "compare", Scenario: json.RawMessage(`{"age":60}`)}))
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_input_error", resp.Error.Error)
	assert.Contains(t, resp.Error.Missing, "cholesterol")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_input_error", resp.Error.Error)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.WSConnections))
}
