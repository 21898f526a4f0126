package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/g960059/cliprelay/internal/api"
	"github.com/g960059/cliprelay/internal/config"
	"github.com/g960059/cliprelay/internal/mailbox"
	"github.com/g960059/cliprelay/internal/model"
)

const (
	ackBody      = "ok"
	healthPath   = "/v1/health"
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type"
)

// Journal receives metadata about mailbox operations after they complete.
type Journal interface {
	RecordEvent(ctx context.Context, ev model.MailboxEvent) error
}

type Server struct {
	cfg         config.Config
	box         *mailbox.Mailbox
	journal     Journal
	logger      glog.Logger
	instanceID  string
	httpSrv     *http.Server
	listener    net.Listener
	mu          sync.Mutex
	shutdown    sync.Once
	shutdownErr error
}

type Option func(*Server)

func WithJournal(j Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(cfg config.Config, box *mailbox.Mailbox, opts ...Option) *Server {
	if box == nil {
		box = mailbox.New()
	}
	s := &Server{
		cfg:        cfg,
		box:        box,
		logger:     glog.Nop(),
		instanceID: uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) InstanceID() string {
	return s.instanceID
}

// Addr returns the bound address once Start has a listener, otherwise "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Handler() http.Handler {
	var h http.Handler
	if s.cfg.StrictPaths {
		mux := http.NewServeMux()
		mux.HandleFunc(healthPath, s.healthHandler)
		mux.HandleFunc("/", s.strictMailboxHandler)
		h = mux
	} else {
		h = http.HandlerFunc(s.mailboxHandler)
	}
	h = withCORS(h)
	if s.cfg.LogRequests {
		h = s.withRequestLog(h)
	}
	return h
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("cliprelay listening", "addr", ln.Addr().String(), "instance_id", s.instanceID)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve tcp: %w", err)
		}
		return nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		var errs []error
		if s.httpSrv != nil {
			if err := s.httpSrv.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.mu.Lock()
		listener := s.listener
		s.listener = nil
		s.mu.Unlock()
		if listener != nil {
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			s.shutdownErr = fmt.Errorf("shutdown errors: %v", errs)
		}
	})
	return s.shutdownErr
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return s.cfg.ShutdownTimeout
}

// mailboxHandler dispatches on method only; the request path is ignored.
func (s *Server) mailboxHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.writeMailbox(w, r)
	case http.MethodGet:
		s.readMailbox(w, r)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodOptions)
	}
}

func (s *Server) strictMailboxHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeAppError(w, notFound(r.URL.Path))
		return
	}
	s.mailboxHandler(w, r)
}

func (s *Server) writeMailbox(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	version := s.box.Write(string(body))
	s.record(r.Context(), model.OpWrite, version, len(body))

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ackBody)
}

func (s *Server) readMailbox(w http.ResponseWriter, r *http.Request) {
	text, version := s.box.ReadAndClear()
	if text != "" {
		s.record(r.Context(), model.OpRead, version, len(text))
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// readBody consumes the whole request body before any mailbox access. A
// request without a positive Content-Length is an empty write.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.ContentLength <= 0 {
		return nil, nil
	}
	var reader io.Reader = r.Body
	if s.cfg.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, payloadTooLarge(tooLarge.Limit)
		}
		return nil, badBody(err)
	}
	return body, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet, http.MethodOptions)
		return
	}
	resp := api.HealthResponse{
		SchemaVersion:  "v1",
		GeneratedAt:    time.Now().UTC(),
		Status:         "ok",
		InstanceID:     s.instanceID,
		MailboxVersion: s.box.Version(),
		Pending:        s.box.Pending(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) record(ctx context.Context, op model.MailboxOp, version uint64, size int) {
	s.logger.Debug("mailbox "+string(op), "version", version, "bytes", size)
	if s.journal == nil {
		return
	}
	ev := model.MailboxEvent{
		InstanceID: s.instanceID,
		Op:         op,
		Version:    version,
		SizeBytes:  size,
		At:         time.Now().UTC(),
	}
	if err := s.journal.RecordEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Error("journal record failed", "op", string(op), "version", version, "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	resp := api.ErrorResponse{
		SchemaVersion: "v1",
		GeneratedAt:   time.Now().UTC(),
		Error: api.APIError{
			Code:    code,
			Message: msg,
		},
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
	}
	s.writeAppError(w, methodNotAllowed())
}
