package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/connectivity-demand/internal/categorical"
	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/features"
	"github.com/yungbote/connectivity-demand/internal/geo"
	"github.com/yungbote/connectivity-demand/internal/geocoding"
	"github.com/yungbote/connectivity-demand/internal/indicator"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/predict"
	"github.com/yungbote/connectivity-demand/internal/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingModel struct {
	mu    sync.Mutex
	calls int
	score float64
}

func (m *countingModel) Predict(context.Context, router.ServiceType, features.Vector) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.score, nil
}

func (m *countingModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fixedResolver struct {
	set *indicator.Set
	err error
}

func (r fixedResolver) Resolve(context.Context, float64, float64) (*indicator.Set, error) {
	return r.set, r.err
}

type fixture struct {
	engine *gin.Engine
	model  *countingModel
	dir    string
}

const testSecret = "test-upload-secret"

func newFixture(t *testing.T, res fixedResolver) *fixture {
	t.Helper()
	model := &countingModel{score: 64.5}
	svc, err := predict.NewService(predict.Deps{
		OwnerTable: categorical.Build("facilityOwnerType", []string{"Government", "NGO"}),
		TypeTable:  categorical.Build("facilityType", []string{"Hospital", "Health Centre IV"}),
		HealthcareGeo: &geo.Transformer{
			Scaler:   &geo.Scaler{Kind: geo.ScalerStandard, Mean: []float64{0, 30}, Scale: []float64{1, 1}},
			Clusters: &geo.ClusterModel{Centroids: [][]float64{{0, 0}, {2, 2}}},
		},
		EducationScaler: &geo.Scaler{Kind: geo.ScalerMinMax, Scale: []float64{1, 1}, Min: []float64{0, 0}},
		Model:           model,
		Indicators:      res,
	}, logger.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	log := logger.NewNop()
	eng := NewRouter(log, RouterConfig{
		HTTP: config.HTTPConfig{
			MaxRequestBytes: 1 << 20,
			EnableLegacy:    true,
			CORSOrigins:     []string{"http://localhost:5173"},
		},
		JWTSecret:      testSecret,
		PredictHandler: NewPredictHandler(log, svc),
		UploadHandler:  NewUploadHandler(log, LocalUploadStore{Dir: dir}),
		HealthHandler:  NewHealthHandler(nil),
	})
	return &fixture{engine: eng, model: model, dir: dir}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func ugandaResolver() fixedResolver {
	vals := make([]*float64, len(indicator.Catalog))
	for i := range vals {
		v := float64(i)
		vals[i] = &v
	}
	return fixedResolver{set: &indicator.Set{Country: geocoding.Country{Code: "UG", Name: "Uganda"}, Values: vals}}
}

func TestHealthcarePrediction(t *testing.T) {
	f := newFixture(t, ugandaResolver())
	rec := f.do(t, http.MethodPost, "/predict/healthcare",
		`{"Latitude": 0.35, "Longitude": 32.58, "facilityType": "Hospital", "facilityOwnerType": "Government"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 64.5, body["Demand Score"])
	assert.NotEmpty(t, body["Recommendations"])
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
	assert.Equal(t, 1, f.model.Calls())
}

func TestHealthcareZeroCoordinatesAreValid(t *testing.T) {
	f := newFixture(t, ugandaResolver())
	rec := f.do(t, http.MethodPost, "/predict/healthcare",
		`{"Latitude": 0, "Longitude": 0, "facilityType": "Hospital", "facilityOwnerType": "NGO"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthcareValidationNeverReachesModel(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"missing facility type", `{"Latitude": 1, "Longitude": 32, "facilityOwnerType": "NGO"}`, "validation_error", "facilityType"},
		{"missing latitude", `{"Longitude": 32, "facilityType": "Hospital", "facilityOwnerType": "NGO"}`, "validation_error", "Latitude"},
		{"wrong type", `{"Latitude": "north", "Longitude": 32, "facilityType": "Hospital", "facilityOwnerType": "NGO"}`, "validation_error", "Latitude"},
		{"out of range", `{"Latitude": 120, "Longitude": 32, "facilityType": "Hospital", "facilityOwnerType": "NGO"}`, "validation_error", "Latitude"},
		{"unknown owner", `{"Latitude": 1, "Longitude": 32, "facilityType": "Hospital", "facilityOwnerType": "Pirates"}`, "unknown_category", "facilityOwnerType"},
		{"unknown type", `{"Latitude": 1, "Longitude": 32, "facilityType": "Spaceport", "facilityOwnerType": "NGO"}`, "unknown_category", "facilityType"},
		{"malformed json", `{"Latitude": `, "validation_error", ""},
		{"empty body", ``, "validation_error", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, ugandaResolver())
			rec := f.do(t, http.MethodPost, "/predict/healthcare", tc.body)

			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeError(t, rec)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.field, body.Field)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, 0, f.model.Calls())
		})
	}
}

func TestEducationPrediction(t *testing.T) {
	f := newFixture(t, ugandaResolver())
	rec := f.do(t, http.MethodPost, "/predict/education", `{"Latitude": 0.35, "Longitude": 32.58}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body predictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 64.5, body.DemandScore)
	assert.NotEmpty(t, body.Recommendations)
}

func TestEducationGeocodeFailureIsBadGateway(t *testing.T) {
	f := newFixture(t, fixedResolver{err: fmt.Errorf("%w: %w", indicator.ErrGeocode, geocoding.ErrNoCountry)})
	rec := f.do(t, http.MethodPost, "/predict/education", `{"Latitude": 0, "Longitude": -30}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "external_dependency", body.Code)
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, 0, f.model.Calls())
}

func TestLegacyPredict(t *testing.T) {
	f := newFixture(t, ugandaResolver())

	rec := f.do(t, http.MethodPost, "/predict", `{"service_type": "education", "Latitude": 1, "Longitude": 32}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "true", rec.Header().Get("Deprecation"))
	var body legacyPredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []float64{64.5}, body.PredictedDemand)

	rec = f.do(t, http.MethodPost, "/predict", `{"service_type": "agriculture", "Latitude": 1, "Longitude": 32}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_service_type", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPost, "/predict", `{"Latitude": 1, "Longitude": 32}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "service_type", decodeError(t, rec).Field)
	assert.Equal(t, 1, f.model.Calls())
}

func TestHealthcareOptions(t *testing.T) {
	f := newFixture(t, ugandaResolver())
	rec := f.do(t, http.MethodGet, "/options/healthcare", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var opts predict.Options
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	assert.Equal(t, []string{"Government", "NGO"}, opts.FacilityOwners)
	assert.Equal(t, []string{"Health Centre IV", "Hospital"}, opts.FacilityTypes)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, ugandaResolver())
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "").Code)

	eng := NewRouter(logger.NewNop(), RouterConfig{
		HealthHandler: NewHealthHandler(func() error { return errors.New("shutting down") }),
	})
	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func uploadRequest(t *testing.T, serviceType, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("service_type", serviceType))
	fw, err := mw.CreateFormFile("file", "data.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Latitude,Longitude\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func signedToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestUpload(t *testing.T) {
	f := newFixture(t, ugandaResolver())

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, uploadRequest(t, "education", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, uploadRequest(t, "education", signedToken(t, "wrong", time.Now().Add(time.Hour))))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, uploadRequest(t, "education", signedToken(t, testSecret, time.Now().Add(-time.Hour))))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, uploadRequest(t, "mining", signedToken(t, testSecret, time.Now().Add(time.Hour))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, uploadRequest(t, "education", signedToken(t, testSecret, time.Now().Add(time.Hour))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "true", rec.Header().Get("Deprecation"))

	want := filepath.Join(f.dir, "datasets", "education_uploaded.csv")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, want, body["file_path"])
	assert.Equal(t, "Dataset uploaded successfully for education", body["status"])
	got, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "Latitude,Longitude\n1,2\n", string(got))
}

type panickingPredictor struct{ Predictor }

func (panickingPredictor) PredictHealthcare(context.Context, predict.Request) (*predict.Result, error) {
	panic("boom")
}

func TestPanicBecomesOpaque500(t *testing.T) {
	log := logger.NewNop()
	eng := NewRouter(log, RouterConfig{PredictHandler: NewPredictHandler(log, panickingPredictor{})})

	req := httptest.NewRequest(http.MethodPost, "/predict/healthcare",
		strings.NewReader(`{"Latitude": 1, "Longitude": 2, "facilityType": "a", "facilityOwnerType": "b"}`))
	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal server error", body.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLegacyRoutesCanBeDisabled(t *testing.T) {
	log := logger.NewNop()
	eng := NewRouter(log, RouterConfig{PredictHandler: NewPredictHandler(log, panickingPredictor{})})
	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, ugandaResolver())
	req := httptest.NewRequest(http.MethodOptions, "/predict/healthcare", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProviderFailuresHideUpstreamDetail(t *testing.T) {
	transport := &url.Error{
		Op:  "Get",
		URL: "http://127.0.0.1:1/geocode/json?key=SUPER-SECRET-KEY&latlng=0.3%2C32.5",
		Err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused"),
	}
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"geocoding transport", fmt.Errorf("%w: geocoding request: %w", indicator.ErrGeocode, transport), "geocoding provider unavailable"},
		{"indicator upstream body", fmt.Errorf("%w: UG: status 500: <html>stack trace</html>", indicator.ErrResolution), "indicator provider unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, fixedResolver{err: tc.err})
			rec := f.do(t, http.MethodPost, "/predict/education", `{"Latitude": 0.3, "Longitude": 32.5}`)

			require.Equal(t, http.StatusBadGateway, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "external_dependency", body.Code)
			assert.Equal(t, tc.message, body.Error)
			assert.NotContains(t, rec.Body.String(), "SUPER-SECRET-KEY")
			assert.NotContains(t, rec.Body.String(), "stack trace")
		})
	}
}

func TestUploadChecksFileBeforeServiceType(t *testing.T) {
	f := newFixture(t, ugandaResolver())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("service_type", "mining"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, time.Now().Add(time.Hour)))

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body.Code)
	assert.Equal(t, "file", body.Field)
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	f := newFixture(t, ugandaResolver())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("service_type", "education"))
	fw, err := mw.CreateFormFile("file", "big.csv")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("1,2\n"), (maxUploadBody/4)+1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, time.Now().Add(time.Hour)))

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file", decodeError(t, rec).Field)
	_, err = os.Stat(filepath.Join(f.dir, "datasets", "education_uploaded.csv"))
	assert.True(t, os.IsNotExist(err))
}
