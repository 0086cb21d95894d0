package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBody(t *testing.T, data []byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return &buf
}

func zstdBody(t *testing.T, data []byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func echoBody(t *testing.T) (http.Handler, *[]byte) {
	t.Helper()
	var got []byte
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = b
		w.WriteHeader(http.StatusOK)
	})
	return h, &got
}

func TestDecompress_Gzip(t *testing.T) {
	inner, got := echoBody(t)
	handler := Decompress(nil)(inner)

	payload := []byte(`{"name":"North Tower"}`)
	req := httptest.NewRequest(http.MethodPost, "/projects", gzipBody(t, payload))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, *got)
}

func TestDecompress_Zstd(t *testing.T) {
	inner, got := echoBody(t)
	handler := Decompress(nil)(inner)

	payload := []byte(`{"title":"Steel supply"}`)
	req := httptest.NewRequest(http.MethodPost, "/contracts", zstdBody(t, payload))
	req.Header.Set("Content-Encoding", "zstd")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, *got)
}

func TestDecompress_StripsEncodingHeader(t *testing.T) {
	var sawEncoding string
	handler := Decompress(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/projects", gzipBody(t, []byte("{}")))
	req.Header.Set("Content-Encoding", "gzip")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, sawEncoding)
}

func TestDecompress_PassthroughWithoutEncoding(t *testing.T) {
	inner, got := echoBody(t)
	handler := Decompress(nil)(inner)

	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader("plain"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("plain"), *got)
}

func TestDecompress_UnsupportedEncoding(t *testing.T) {
	handler := Decompress(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader("x"))
	req.Header.Set("Content-Encoding", "br")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestDecompress_CorruptBody(t *testing.T) {
	handler := Decompress(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader("definitely not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecompress_RejectsExpansionBomb(t *testing.T) {
	// Highly repetitive payload compresses far beyond the allowed ratio.
	cfg := &DecompressConfig{
		MaxDecompressedSize: 1 << 20,
		MaxCompressedSize:   1 << 20,
		MaxCompressionRatio: 10,
		AllowedEncodings:    []string{"gzip"},
	}
	handler := Decompress(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	bomb := bytes.Repeat([]byte("A"), 512*1024)
	req := httptest.NewRequest(http.MethodPost, "/projects", gzipBody(t, bomb))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecompress_RejectsOversizedOutput(t *testing.T) {
	cfg := &DecompressConfig{
		MaxDecompressedSize: 1024,
		MaxCompressedSize:   1 << 20,
		MaxCompressionRatio: 1000,
		AllowedEncodings:    []string{"gzip"},
	}
	handler := Decompress(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/projects", gzipBody(t, bytes.Repeat([]byte("B"), 4096)))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecompress_SkipsBodylessMethods(t *testing.T) {
	called := false
	handler := Decompress(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
