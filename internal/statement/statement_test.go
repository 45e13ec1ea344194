package statement

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte) (string, error) {
	return f.text, f.err
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		contentType, url string
		want             bool
	}{
		{"application/pdf", "https://x/file", true},
		{"application/PDF; charset=binary", "https://x/file", true},
		{"text/csv", "https://x/statement.PDF", true},
		{"text/csv", "https://x/statement.csv", false},
		{"", "https://x/file", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPDF(tt.contentType, tt.url), "ct=%q url=%q", tt.contentType, tt.url)
	}
}

func TestReaderPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("NETFLIX,15.49\n"))
	}))
	defer srv.Close()

	r := &Reader{Fetcher: &HTTPFetcher{}, Extractor: &fakeExtractor{err: errors.New("must not be called")}}
	text, contentType, err := r.Text(t.Context(), srv.URL+"/statement.csv")
	require.NoError(t, err)
	assert.Equal(t, "NETFLIX,15.49\n", text)
	assert.Equal(t, "text/csv", contentType)
}

func TestReaderPDFGoesThroughExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 ..."))
	}))
	defer srv.Close()

	r := &Reader{Fetcher: &HTTPFetcher{}, Extractor: &fakeExtractor{text: "NETFLIX 15.49"}}
	text, _, err := r.Text(t.Context(), srv.URL+"/statement")
	require.NoError(t, err)
	assert.Equal(t, "NETFLIX 15.49", text)
}

func TestReaderFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	r := &Reader{Fetcher: &HTTPFetcher{}, Extractor: &fakeExtractor{}}
	_, _, err := r.Text(t.Context(), srv.URL+"/x")
	assert.Error(t, err)
}

func TestReaderExtractorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	r := &Reader{Fetcher: &HTTPFetcher{}, Extractor: &fakeExtractor{err: errors.New("corrupt xref")}}
	_, _, err := r.Text(t.Context(), srv.URL+"/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt xref")
}
