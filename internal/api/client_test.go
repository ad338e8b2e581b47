package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/dociq/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", "secret", 5*time.Second)
}

func TestClient_SendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	})
	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NotNil(t, docs)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `true`)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	ok, err := c.DriveStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_ListDocuments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/documents", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"_additional":{"id":"a1"},"title":"Handbook","pages":12,"source":"upload"},
			{"_additional":{"id":"b2"},"title":null,"pages":null}
		]`)
	})

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a1", docs[0].ID)
	assert.Equal(t, "Handbook", docs[0].DisplayTitle())
	assert.Equal(t, 12, docs[0].PageCount())
	assert.Equal(t, "b2", docs[1].ID)
	assert.Equal(t, "untitled", docs[1].DisplayTitle())
	assert.Equal(t, 0, docs[1].PageCount())
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "What is the refund policy?", body["query"])
		assert.Equal(t, "", body["docId"])

		_, _ = io.WriteString(w, `{"answer":"Refunds within 30 days.","sources":[{"page":2,"excerpt":"...","confidence":0.92}]}`)
	})

	resp, err := c.Search(context.Background(), models.SearchRequest{Query: "What is the refund policy?"})
	require.NoError(t, err)
	assert.Equal(t, "Refunds within 30 days.", resp.Text())
	require.Len(t, resp.Citations(), 1)
	assert.Equal(t, "Page 2 (92%)", resp.Citations()[0].String())
}

func TestClient_NonSuccessIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Search(context.Background(), models.SearchRequest{Query: "q"})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Body)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "", time.Second)
	_, err := c.ListDocuments(context.Background())
	require.Error(t, err)

	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_Upload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Legal", r.FormValue("workspace"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "hello world", string(data))

		_, _ = io.WriteString(w, `{"docId":"d9","name":"notes.txt","words":2,"chunks":1}`)
	})

	res, err := c.Upload(context.Background(), "notes.txt", strings.NewReader("hello world"), "Legal")
	require.NoError(t, err)
	assert.Equal(t, models.UploadResult{DocID: "d9", Name: "notes.txt", Words: 2, Chunks: 1}, *res)
}

func TestClient_UploadExternal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload/external", r.URL.Path)
		var in models.ExternalUpload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "https://example.com/a.pdf", in.URL)
		_, _ = io.WriteString(w, `{"docId":"x","name":"a.pdf"}`)
	})

	res, err := c.UploadExternal(context.Background(), models.ExternalUpload{URL: "https://example.com/a.pdf", Name: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "x", res.DocID)
}

func TestClient_DownloadPDF(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/doc-1.pdf", r.URL.Path)
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	data, err := c.DownloadPDF(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestClient_Drive(t *testing.T) {
	var claimed, synced bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/drive/claim":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "k 1", r.URL.Query().Get("tempKey"))
			claimed = true
			w.WriteHeader(http.StatusNoContent)
		case "/api/drive/sync":
			synced = true
			_, _ = io.WriteString(w, `{"status":"queued"}`)
		default:
			http.NotFound(w, r)
		}
	})

	require.NoError(t, c.DriveClaim(context.Background(), "k 1"))
	res, err := c.DriveSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "queued", res.Status)
	assert.True(t, claimed)
	assert.True(t, synced)
	assert.True(t, strings.HasSuffix(c.DriveConnectURL(), "/api/drive/connect"))
}

func TestClient_EmptyBodyDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	resp, err := c.Search(context.Background(), models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.NoResponseText, resp.Text())
	assert.Empty(t, resp.Citations())
}
