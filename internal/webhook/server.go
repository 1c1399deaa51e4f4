// Package webhook receives inbound platform events and drives the
// normalize/route/enqueue pipeline.
package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kamir/gowxbot/internal/archive"
	"github.com/kamir/gowxbot/internal/router"
	"github.com/kamir/gowxbot/internal/wxmsg"
)

// Sender enqueues a reply to the caller's room.
type Sender interface {
	SendText(ctx context.Context, receiver, content, aters, producer, messageID string) error
}

// Dispatcher runs a matched handler in the background.
type Dispatcher interface {
	Dispatch(ctx context.Context, key string, msg *wxmsg.InboundMessage)
}

type Server struct {
	addr     string
	actorID  string
	router   *router.Router
	dispatch Dispatcher
	sender   Sender
	archiver *archive.Publisher
	logger   *slog.Logger
	httpSrv  *http.Server
}

func NewServer(addr string, rt *router.Router, dispatch Dispatcher, sender Sender, archiver *archive.Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		router:   rt,
		dispatch: dispatch,
		sender:   sender,
		archiver: archiver,
		logger:   logger.With("component", "webhook"),
	}
}

// SetActorID installs the bot's configured wxid, used when an event
// omits the actor field. Mention detection needs it.
func (s *Server) SetActorID(wxid string) {
	s.actorID = wxid
}

func newTraceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// Handler builds the HTTP handler; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleEvent)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	traceID := newTraceID()

	var raw wxmsg.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.logger.Warn("undecodable webhook body", "trace_id", traceID, "error", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if s.actorID != "" {
		if _, ok := raw["wechatid"]; !ok {
			raw["wechatid"] = s.actorID
		}
	}

	msg := wxmsg.Normalize(raw)
	s.logger.Info("inbound event",
		"trace_id", traceID, "msg_id", msg.MessageID, "room", msg.RoomID,
		"sender", msg.SenderID, "type", msg.ContentType.String(), "self", msg.IsSelf)

	// Archiving is best-effort and must never delay the response.
	if s.archiver != nil {
		go s.archiver.Archive(context.WithoutCancel(r.Context()), msg)
	}

	result := map[string]any{"success": true, "trace_id": traceID, "matched": false}
	w.Header().Set("Content-Type", "application/json")

	// Echo suppression: the bot's own messages are never routed.
	if msg.IsSelf {
		json.NewEncoder(w).Encode(result)
		return
	}

	decision, err := s.router.Route(msg)
	if err != nil {
		s.logger.Error("routing failed", "trace_id", traceID, "error", err)
		json.NewEncoder(w).Encode(result)
		return
	}
	if !decision.Matched {
		json.NewEncoder(w).Encode(result)
		return
	}
	result["matched"] = true
	result["rule_id"] = decision.RuleID

	if decision.ReplyText != "" {
		if err := s.sender.SendText(r.Context(), msg.RoomID, decision.ReplyText, "", "router", msg.MessageID); err != nil {
			s.logger.Error("failed to enqueue reply", "trace_id", traceID, "error", err)
		}
	}
	if decision.FunctionKey != "" {
		// Fire-and-forget; the dispatcher contains handler panics.
		go s.dispatch.Dispatch(context.WithoutCancel(r.Context()), decision.FunctionKey, msg)
	}

	json.NewEncoder(w).Encode(result)
}
