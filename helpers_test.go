package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"evtimesel/internal/config"
)

const (
	testEventID = "gfz2024abcd"
	testBody    = "#EventID|Time|Latitude|Longitude|Depth/km|Author|Catalog|Contributor|ContributorID|MagType|Magnitude|MagAuthor|EventLocationName\n" +
		"gfz2024abcd|2024-01-01T00:00:00|52.38|13.06|10.0|GFZ|GFZ|GFZ|gfz2024abcd|M|4.2|GFZ|Germany\n"
)

// newFDSNServer fakes an fdsnws-event endpoint that knows testEventID.
func newFDSNServer(t *testing.T, available bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/fdsnws/event/1/version", func(w http.ResponseWriter, r *http.Request) {
		if !available {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "1.2.0")
	})
	mux.HandleFunc("/fdsnws/event/1/query", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("eventid") != testEventID {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, testBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) config.Config {
	cfg := config.Default()
	cfg.EventURL = srv.URL + "/fdsnws/event/1"
	cfg.DataselectURL = "https://geofon.gfz.de/fdsnws/dataselect/1"
	cfg.Debounce = 20 * time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
