// Package webui serves a chat page that talks to the agent over a websocket.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"tableagent/internal/agent"
)

//go:embed static
var staticFiles embed.FS

const (
	frameMessage  = "message"
	frameStatus   = "status"
	frameResponse = "response"
	frameError    = "error"

	statusProcessing = "Processing your request..."
	notInitialized   = "Agent not initialized. Please check LLM configuration."

	// Frames received while a turn is running wait here.
	inboxSize = 16
)

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// SessionFactory creates one agent session per connection.
type SessionFactory interface {
	NewSession(ctx context.Context) (*agent.Session, error)
}

// Server is the web front end. A nil factory means the agent failed to start;
// the page still loads and every connection gets an error frame.
type Server struct {
	addr      string
	outputDir string
	factory   SessionFactory

	mu       sync.Mutex
	sessions map[string]*agent.Session
}

func NewServer(factory SessionFactory, addr, outputDir string) *Server {
	if addr == "" {
		addr = ":8000"
	}
	return &Server{
		addr:      addr,
		outputDir: outputDir,
		factory:   factory,
		sessions:  make(map[string]*agent.Session),
	}
}

// Handler returns the routes: the page, /ws, /health and /outputs/.
func (s *Server) Handler() (http.Handler, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("embed static fs: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	if s.outputDir != "" {
		mux.Handle("/outputs/", http.StripPrefix("/outputs/", http.FileServer(http.Dir(s.outputDir))))
	}
	return mux, nil
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("[webui] shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[webui] shutdown error: %v", err)
		}
	}()

	log.Printf("[webui] listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webui server error: %w", err)
	}
	return nil
}

// ActiveSessions is the number of open websocket conversations.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":            "healthy",
		"agent_initialized": s.factory != nil,
	})
}

func send(ctx context.Context, conn *websocket.Conn, typ, content string) error {
	data, err := json.Marshal(wsMessage{Type: typ, Content: content})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[webui] websocket accept error: %v", err)
		return
	}
	defer conn.CloseNow()

	// Closing the socket cancels ctx and with it any running turn.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if s.factory == nil {
		_ = send(ctx, conn, frameError, notInitialized)
		conn.Close(websocket.StatusInternalError, "agent not initialized")
		return
	}
	session, err := s.factory.NewSession(ctx)
	if err != nil {
		log.Printf("[webui] session init failed: %v", err)
		_ = send(ctx, conn, frameError, notInitialized)
		conn.Close(websocket.StatusInternalError, "agent not initialized")
		return
	}

	id := session.ID()
	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	log.Printf("[webui] client connected: %s", id)
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		log.Printf("[webui] client disconnected: %s", id)
	}()

	inbox := make(chan string, inboxSize)
	go s.readLoop(ctx, cancel, conn, inbox)

	for {
		select {
		case <-ctx.Done():
			return
		case content := <-inbox:
			if err := s.turn(ctx, conn, session, content); err != nil {
				return
			}
		}
	}
}

// readLoop keeps reading while a turn runs so a disconnect is noticed.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, inbox chan<- string) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = send(ctx, conn, frameError, "invalid frame: "+err.Error())
			continue
		}
		switch {
		case msg.Type != frameMessage:
			_ = send(ctx, conn, frameError, fmt.Sprintf("unsupported frame type %q", msg.Type))
			continue
		case msg.Content == "":
			_ = send(ctx, conn, frameError, agent.ErrEmptyInput.Error())
			continue
		}
		select {
		case inbox <- msg.Content:
		default:
			_ = send(ctx, conn, frameError, "too many pending messages")
		}
	}
}

// turn answers one message. Only write failures end the connection.
func (s *Server) turn(ctx context.Context, conn *websocket.Conn, session *agent.Session, content string) error {
	if err := send(ctx, conn, frameStatus, statusProcessing); err != nil {
		return err
	}
	reply, err := session.Send(ctx, content)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[webui] %s: turn failed: %v", session.ID(), err)
		return send(ctx, conn, frameError, "Error processing request: "+err.Error())
	}
	return send(ctx, conn, frameResponse, reply)
}
