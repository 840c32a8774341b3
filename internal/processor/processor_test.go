package processor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
)

func TestDecodeDocument(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngBytes)

	doc, err := DecodeDocument(b64)
	require.NoError(t, err)
	assert.Equal(t, "image/png", doc.MIMEType)
	assert.Equal(t, b64, doc.Base64)
	assert.Equal(t, len(pngBytes), doc.Size)

	doc, err = DecodeDocument("data:image/png;base64," + b64)
	require.NoError(t, err)
	assert.Equal(t, b64, doc.Base64)

	doc, err = DecodeDocument(base64.RawStdEncoding.EncodeToString(pdfBytes))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pdfBytes), doc.Base64)
}

func TestDecodeDocument_Errors(t *testing.T) {
	_, err := DecodeDocument("  ")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = DecodeDocument("data:image/png,notbase64")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeDocument("%%%")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeDocument(base64.StdEncoding.EncodeToString([]byte("hello, plain text")))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLookupDocumentType(t *testing.T) {
	dt, ok := LookupDocumentType(" pan ")
	require.True(t, ok)
	assert.Equal(t, "PAN Card", dt.Label)

	_, ok = LookupDocumentType("PAN Card")
	assert.False(t, ok)
	assert.Len(t, DocumentTypes, 10)
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("ExtractValidate")
	require.NoError(t, err)
	assert.Equal(t, OpExtractValidate, op)

	_, err = ParseOperation("extract-validate")
	assert.ErrorIs(t, err, ErrUnknownOperation)
	assert.Len(t, Operations(), 5)
}

func TestClientCall(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"enhancedImage":"abc"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/v2", Token: "upstream-token"})
	require.NoError(t, err)

	res, err := c.Call(context.Background(), OpExtractValidate, map[string]any{"image": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"enhancedImage":"abc"}`, string(res.Body))
	assert.Equal(t, "/v2/api/extract-validate", gotPath)
	assert.Equal(t, "Bearer upstream-token", gotAuth)
	assert.Equal(t, "x", gotBody["image"])
}

func TestClientCall_UpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/classify":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"unreadable"}`))
		case "/api/preprocess":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("image too blurry\n"))
		case "/api/extract":
			_, _ = w.Write([]byte("ok"))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		}
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := c.Call(context.Background(), OpClassify, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)

	res, err = c.Call(context.Background(), OpPreprocess, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.JSONEq(t, `{"error":"image too blurry"}`, string(res.Body))

	res, err = c.Call(context.Background(), OpAutoIndex, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.JSONEq(t, `{"error":"<html>bad gateway</html>"}`, string(res.Body))

	res, err = c.Call(context.Background(), OpExtract, map[string]any{})
	assert.ErrorIs(t, err, ErrBadUpstreamResponse)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusOK, res.Status)

	_, err = c.Call(context.Background(), Operation("resize"), nil)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}
