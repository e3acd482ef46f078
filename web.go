package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"evtimesel/internal/config"
	"evtimesel/internal/eventtime"
	"evtimesel/internal/fdsnevent"
	"evtimesel/internal/observability"
)

const (
	legendAvailable   = "Event-based Time Selection ✓"
	legendUnavailable = "Event-based Time Selection (service unavailable)"

	wsWriteTimeout = 10 * time.Second
)

// PageData feeds the builder page template.
type PageData struct {
	Values    map[string]string
	Available bool
	Legend    string
	Result    LookupResult
	Version   string

	// Share text: meta description when an origin time is resolved (for link previews).
	ShareDescription string
}

// Value returns the form value for name.
func (p PageData) Value(name string) string {
	return p.Values[name]
}

func newServeCmd(root *rootFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dataselect builder web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.ListenPort = port
			}
			if cfg.ListenPort <= 0 {
				return fmt.Errorf("--port must be > 0")
			}

			logger := newLogger(cfg.LogLevel, os.Stderr)
			metrics := observability.NewMetrics(cfg.MetricsNamespace)
			client := fdsnevent.NewClient(cfg.EventURL, fdsnevent.WithTimeout(cfg.RequestTimeout))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := newWebServer(ctx, cfg, client, metrics, logger)
			printListenAddrs(cmd.OutOrStdout(), cfg.ListenPort)
			return srv.listenAndServe(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default 8484)")
	return cmd
}

type webServer struct {
	cfg       config.Config
	svc       eventService
	metrics   *observability.Metrics
	logger    *slog.Logger
	available bool
	tpl       *template.Template
	upgrader  websocket.Upgrader
}

// newWebServer probes the event service once; an unreachable service disables the
// event section for the lifetime of the server.
func newWebServer(ctx context.Context, cfg config.Config, svc eventService, metrics *observability.Metrics, logger *slog.Logger) *webServer {
	available := svc.Available(ctx)
	metrics.SetServiceAvailable(available)
	if available {
		logger.Info("event service available", "url", cfg.EventURL)
	} else {
		logger.Warn("event service unavailable, event-based time selection disabled", "url", cfg.EventURL)
	}

	return &webServer{
		cfg:       cfg,
		svc:       svc,
		metrics:   metrics,
		logger:    logger,
		available: available,
		tpl:       template.Must(template.New("page").Parse(pageHTML)),
	}
}

func (s *webServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/lookup", s.handleLookup)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *webServer) listenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.ListenPort),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *webServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"event_service": s.available,
	})
}

// handlePage renders the builder. A URL carrying an eventid shows the resolved window.
func (s *webServer) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	sess := newSession(s.cfg, s.svc, s.logger, s.metrics)
	defer sess.close()

	q := r.URL.Query()
	for _, f := range formFields {
		if v := strings.TrimSpace(q.Get(string(f))); v != "" {
			sess.form.SetValue(f, v)
		}
	}
	if id := sess.form.Value(eventtime.FieldEventID); s.available && id != "" {
		// A client that goes away cancels its lookup.
		submitted := make(chan struct{})
		go func() {
			select {
			case <-r.Context().Done():
				sess.close()
			case <-submitted:
			}
		}()
		_ = sess.ctrl.Submit(id)
		close(submitted)

		if r.Context().Err() != nil {
			s.logger.Debug("client gone before lookup finished", "eventid", id)
			return
		}
	}

	data := s.pageData(sess)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.logger.Warn("render page", "error", err)
	}
}

// handleLookup accepts the form post and redirects to the shareable GET URL.
func (s *webServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	values := make(map[eventtime.Field]string, len(formFields))
	for _, f := range formFields {
		values[f] = r.FormValue(string(f))
	}
	http.Redirect(w, r, buildPageURL(values), http.StatusFound)
}

func (s *webServer) pageData(sess *session) PageData {
	snap := sess.form.Snapshot()
	values := make(map[string]string, len(snap.Values))
	for k, v := range snap.Values {
		values[string(k)] = v
	}

	data := PageData{
		Values:    values,
		Available: s.available,
		Legend:    legendUnavailable,
		Result:    buildResult(snap, sess.ctrl, s.cfg.DataselectURL),
		Version:   appVersion,
	}
	if s.available {
		data.Legend = legendAvailable
	}
	if data.Result.OriginTime != "" {
		data.ShareDescription = buildShareDescription(data.Result)
	}
	return data
}

// buildPageURL returns "/?..." with only the non-empty form values.
func buildPageURL(values map[eventtime.Field]string) string {
	v := url.Values{}
	for _, f := range formFields {
		if val := strings.TrimSpace(values[f]); val != "" {
			v.Set(string(f), val)
		}
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

func buildShareDescription(res LookupResult) string {
	return fmt.Sprintf("Event %s, origin %s. Window %s → %s.",
		res.EventID, res.OriginTime, res.StartTime, res.EndTime)
}

/* ---------------- websocket form sessions ---------------- */

type clientMessage struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
}

type updateMessage struct {
	Type      string            `json:"type"`
	Available bool              `json:"available"`
	Fields    map[string]string `json:"fields,omitempty"`
	Status    string            `json:"status"`
	Class     string            `json:"class"`
	URL       string            `json:"url"`
}

// handleWS gives every open page its own form and controller. Edits arrive as
// messages; every change or status update pushes the current form state back.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if !s.available {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteJSON(updateMessage{Type: "update", Status: legendUnavailable})
		return
	}

	sess := newSession(s.cfg, s.svc, s.logger, s.metrics)
	defer sess.close()
	s.metrics.ActiveSessions.Inc()
	defer s.metrics.ActiveSessions.Dec()
	sess.logger.Debug("session opened", "remote", r.RemoteAddr)

	wake := make(chan struct{}, 1)
	notify := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	sess.form.OnChange(func(eventtime.Snapshot) { notify() })
	sess.form.OnStatus(func(eventtime.Status) { notify() })

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-stop:
				return
			case <-wake:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(sess.update()); err != nil {
					sess.logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}()

	notify()
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "edit":
			f, ok := knownField(msg.Field)
			if !ok {
				sess.logger.Debug("ignoring edit of unknown field", "field", msg.Field)
				continue
			}
			sess.ctrl.HandleEdit(f, msg.Value)
		case "clear":
			sess.ctrl.Clear()
		case "sync":
			notify()
		default:
			sess.logger.Debug("ignoring message", "type", msg.Type)
		}
	}

	close(stop)
	<-writerDone
	sess.logger.Debug("session closed")
}

func (s *session) update() updateMessage {
	snap := s.form.Snapshot()
	fields := make(map[string]string, len(eventtime.ResetFields))
	for _, f := range eventtime.ResetFields {
		fields[string(f)] = snap.Get(f)
	}
	return updateMessage{
		Type:      "update",
		Available: true,
		Fields:    fields,
		Status:    snap.Status.Message,
		Class:     statusClass(snap.Status),
		URL:       previewURL(snap, s.dataselectBase),
	}
}

/* ---------------- helpers ---------------- */

func orDefault(val, def string) string {
	if strings.TrimSpace(val) == "" {
		return def
	}
	return strings.TrimSpace(val)
}

func printListenAddrs(w io.Writer, port int) {
	fmt.Fprintln(w, "Listening on:")
	fmt.Fprintf(w, "  http://127.0.0.1:%d/\n", port)

	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			ip, _, err := net.ParseCIDR(a.String())
			if err != nil || ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}
			fmt.Fprintf(w, "  http://%s:%d/\n", ip.String(), port)
		}
	}
	fmt.Fprintln(w)
}
