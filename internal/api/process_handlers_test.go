package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armour007/docproc-backend/internal/processor"
)

func TestProcess_ForwardsNormalisedImage(t *testing.T) {
	env := newTestEnv(t)
	token, _, _ := issue(t, "jdoe")
	env.proc.res = &processor.Result{Status: http.StatusOK, Body: json.RawMessage(`{"enhancedImage":"abc"}`)}

	w := env.do(http.MethodPost, "/api/preprocess", token, map[string]any{"image": "data:image/png;base64," + pngBase64})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"enhancedImage":"abc"}`, w.Body.String())
	assert.Equal(t, processor.OpPreprocess, env.proc.lastOp)
	assert.Equal(t, pngBase64, env.proc.body["image"])
}

func TestProcess_RouteOperations(t *testing.T) {
	env := newTestEnv(t)
	token, _, _ := issue(t, "jdoe")
	analysis := map[string]any{"fields": []string{"name"}}
	cases := []struct {
		path string
		op   processor.Operation
		body map[string]any
	}{
		{"/api/autoindex", processor.OpAutoIndex, map[string]any{"image": pngBase64}},
		{"/api/classify", processor.OpClassify, map[string]any{"image": pngBase64, "documentType": "pan"}},
		{"/api/extract", processor.OpExtract, map[string]any{"image": pngBase64, "analysisResult": analysis}},
		{"/api/extract-validate", processor.OpExtractValidate, map[string]any{"image": pngBase64, "analysisResult": analysis, "documentType": "INVOICE"}},
	}
	for _, tc := range cases {
		w := env.do(http.MethodPost, tc.path, token, tc.body)
		require.Equal(t, http.StatusOK, w.Code, tc.path+": "+w.Body.String())
		assert.Equal(t, tc.op, env.proc.lastOp)
	}
	assert.Equal(t, "INVOICE", env.proc.body["documentType"])
	assert.Equal(t, 4, env.proc.calls)
}

func TestProcess_Validation(t *testing.T) {
	env := newTestEnv(t)
	token, _, _ := issue(t, "jdoe")
	gif := base64.StdEncoding.EncodeToString([]byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"))
	cases := []struct {
		name, path string
		body       any
		status     int
	}{
		{"no image", "/api/preprocess", map[string]any{}, http.StatusBadRequest},
		{"bad base64", "/api/autoindex", map[string]any{"image": "***"}, http.StatusBadRequest},
		{"unsupported", "/api/preprocess", map[string]any{"image": gif}, http.StatusUnsupportedMediaType},
		{"classify without type", "/api/classify", map[string]any{"image": pngBase64}, http.StatusBadRequest},
		{"classify unknown type", "/api/classify", map[string]any{"image": pngBase64, "documentType": "LIBRARYCARD"}, http.StatusBadRequest},
		{"extract without analysis", "/api/extract", map[string]any{"image": pngBase64}, http.StatusBadRequest},
		{"extract null analysis", "/api/extract-validate", map[string]any{"image": pngBase64, "analysisResult": nil}, http.StatusBadRequest},
		{"not json", "/api/preprocess", "{", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, tc.path, token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
	assert.Zero(t, env.proc.calls)
}

func TestProcess_UpstreamStatuses(t *testing.T) {
	env := newTestEnv(t)
	token, _, _ := issue(t, "jdoe")
	body := map[string]any{"image": pngBase64}

	env.proc.res = &processor.Result{Status: http.StatusUnprocessableEntity, Body: json.RawMessage(`{"error":"blurry"}`)}
	w := env.do(http.MethodPost, "/api/autoindex", token, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"blurry"}`, w.Body.String())

	env.proc.res = &processor.Result{Status: http.StatusInternalServerError, Body: json.RawMessage(`{"error":"boom"}`)}
	w = env.do(http.MethodPost, "/api/autoindex", token, body)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "document processor unavailable", decode(t, w)["error"])

	env.proc.res, env.proc.err = nil, errors.New("connection refused")
	w = env.do(http.MethodPost, "/api/autoindex", token, body)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProcess_BreakerOpensAfterFailures(t *testing.T) {
	env := newTestEnv(t)
	token, _, _ := issue(t, "jdoe")
	env.proc.res, env.proc.err = nil, errors.New("timeout")
	body := map[string]any{"image": pngBase64}

	for i := 0; i < breakerThreshold; i++ {
		w := env.do(http.MethodPost, "/api/preprocess", token, body)
		require.Equal(t, http.StatusBadGateway, w.Code)
	}
	w := env.do(http.MethodPost, "/api/preprocess", token, body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, breakerThreshold, env.proc.calls)
}

func TestProcess_PlainTextRejectionPassesThrough(t *testing.T) {
	env := newTestEnv(t)
	token, _, _ := issue(t, "jdoe")
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("image too blurry"))
	}))
	defer upstream.Close()
	client, err := processor.New(processor.Config{BaseURL: upstream.URL})
	require.NoError(t, err)
	d := CurrentDeps()
	d.Processor = client
	Configure(d)

	body := map[string]any{"image": pngBase64}
	for i := 0; i < breakerThreshold+2; i++ {
		w := env.do(http.MethodPost, "/api/preprocess", token, body)
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		assert.JSONEq(t, `{"error":"image too blurry"}`, w.Body.String())
	}
	assert.Equal(t, int32(breakerThreshold+2), hits.Load())
	assert.True(t, GetBreaker(processorBreaker).Allow())
}

func TestProcess_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	token, _, _ := issue(t, "jdoe")
	d := CurrentDeps()
	d.Processor = nil
	Configure(d)

	w := env.do(http.MethodPost, "/api/preprocess", token, map[string]any{"image": pngBase64})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/document-types", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["documentTypes"], len(processor.DocumentTypes))
	assert.Equal(t, processor.AcceptedExtensions, body["acceptedExtensions"])

	w = env.do(http.MethodGet, "/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	paths := decode(t, w)["paths"].(map[string]any)
	for _, p := range []string{"/api/auth/login", "/api/history/log", "/api/extract-validate"} {
		assert.Contains(t, paths, p)
	}

	w = env.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docproc_http_requests_total")
}
