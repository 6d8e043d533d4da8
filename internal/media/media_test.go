package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexsms/campaign-engine/internal/model"
)

func TestMimeFromFilename(t *testing.T) {
	cases := map[string]string{
		"photo.JPG":    "image/jpeg",
		"photo.jpeg":   "image/jpeg",
		"banner.png":   "image/png",
		"clip.mp4":     "video/mp4",
		"terms.pdf":    "application/pdf",
		"letter.docx":  "application/msword",
		"mystery.bin":  "application/octet-stream",
		"no-extension": "application/octet-stream",
	}
	for filename, want := range cases {
		assert.Equal(t, want, MimeFromFilename(filename), "filename %q", filename)
	}
}

func TestFromURLBuildsPayload(t *testing.T) {
	body := []byte("fake image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	m := &model.Media{Type: "image", URL: srv.URL + "/promo/banner.png", Caption: "oferta"}
	payload, err := FromURL(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, body, payload.Data)
	assert.Equal(t, "image/png", payload.Mime)
	assert.Equal(t, "banner.png", payload.Filename)
	assert.Equal(t, "oferta", payload.Caption)
}

func TestFromURLGuessesMimeFromFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	m := &model.Media{Type: "image", URL: srv.URL + "/cat.jpg"}
	payload, err := FromURL(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", payload.Mime)
}

func TestFromURLExplicitMimeWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	m := &model.Media{Type: "document", URL: srv.URL + "/file", Mime: "application/pdf"}
	payload, err := FromURL(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", payload.Mime)
}

func TestFromURLNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := FromURL(context.Background(), &model.Media{URL: srv.URL + "/missing.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFromURLUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := FromURL(context.Background(), &model.Media{URL: srv.URL + "/gone.png"})
	require.Error(t, err)
}
