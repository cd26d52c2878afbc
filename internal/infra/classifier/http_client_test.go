package classifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PostsImage(t *testing.T) {
	var gotBody []byte
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"species_id": 3, "confidence": 0.91}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	res, err := c.Classify(context.Background(), []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, "3", res.SpeciesID)
	assert.InDelta(t, 0.91, res.Confidence, 1e-9)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, gotBody)
	assert.Equal(t, "application/octet-stream", gotType)
}

func TestClassify_StringLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"species_id": "12", "confidence": 0.5}`))
	}))
	defer srv.Close()

	res, err := NewHTTPClient(srv.URL, time.Second).Classify(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "12", res.SpeciesID)
}

func TestClassify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Classify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestClassify_EmptyImage(t *testing.T) {
	_, err := NewHTTPClient("http://127.0.0.1:1", time.Second).Classify(context.Background(), nil)
	assert.Error(t, err)
}
