package webui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableagent/internal/agent"
	"tableagent/internal/chat"
	"tableagent/internal/tools"
)

type fakeFactory struct {
	adapter chat.Adapter

	mu       sync.Mutex
	sessions []*agent.Session
}

func (f *fakeFactory) NewSession(context.Context) (*agent.Session, error) {
	reg, err := tools.NewRegistry()
	if err != nil {
		return nil, err
	}
	s := agent.NewSession(agent.NewLoop(f.adapter, reg))
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func echo() chat.Adapter {
	return chat.AdapterFunc(func(_ context.Context, h []chat.Message, _ *chat.Params) (chat.Message, error) {
		return chat.Message{Role: chat.RoleAssistant, Content: "echo: " + h[len(h)-1].Content}, nil
	})
}

func newTestServer(t *testing.T, factory SessionFactory, outputDir string) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(factory, "", outputDir)
	h, err := s.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return s, srv
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func write(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) wsMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(readCtx)
	require.NoError(t, err)
	var msg wsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHealth(t *testing.T) {
	for _, tc := range []struct {
		name    string
		factory SessionFactory
		want    bool
	}{
		{"initialized", &fakeFactory{adapter: echo()}, true},
		{"not initialized", nil, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newTestServer(t, tc.factory, "")
			resp, err := http.Get(srv.URL + "/health")
			require.NoError(t, err)
			defer resp.Body.Close()
			var body struct {
				Status           string `json:"status"`
				AgentInitialized bool   `json:"agent_initialized"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "healthy", body.Status)
			assert.Equal(t, tc.want, body.AgentInitialized)
		})
	}
}

func TestIndexAndOutputs(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "plot.png"), []byte("\x89PNG"), 0o644))
	_, srv := newTestServer(t, nil, out)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "/ws")

	resp, err = http.Get(srv.URL + "/outputs/plot.png")
	require.NoError(t, err)
	img, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "\x89PNG", string(img))
}

func TestStatusPrecedesResponse(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, &fakeFactory{adapter: echo()}, "")
	conn := dial(t, ctx, srv)

	write(t, ctx, conn, wsMessage{Type: "message", Content: "profile sales.csv"})
	assert.Equal(t, wsMessage{Type: "status", Content: statusProcessing}, read(t, ctx, conn))
	assert.Equal(t, wsMessage{Type: "response", Content: "echo: profile sales.csv"}, read(t, ctx, conn))
}

func TestErrorKeepsConnectionOpen(t *testing.T) {
	ctx := context.Background()
	var n int
	var mu sync.Mutex
	flaky := chat.AdapterFunc(func(_ context.Context, h []chat.Message, _ *chat.Params) (chat.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 1 {
			return chat.Message{}, errors.New("model exploded")
		}
		return chat.Message{Role: chat.RoleAssistant, Content: "fine now"}, nil
	})
	_, srv := newTestServer(t, &fakeFactory{adapter: flaky}, "")
	conn := dial(t, ctx, srv)

	write(t, ctx, conn, wsMessage{Type: "message", Content: "one"})
	assert.Equal(t, "status", read(t, ctx, conn).Type)
	got := read(t, ctx, conn)
	assert.Equal(t, "error", got.Type)
	assert.Contains(t, got.Content, "model exploded")

	write(t, ctx, conn, wsMessage{Type: "message", Content: "two"})
	assert.Equal(t, "status", read(t, ctx, conn).Type)
	assert.Equal(t, wsMessage{Type: "response", Content: "fine now"}, read(t, ctx, conn))
}

func TestBadFrames(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, &fakeFactory{adapter: echo()}, "")
	conn := dial(t, ctx, srv)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, "error", read(t, ctx, conn).Type)

	write(t, ctx, conn, wsMessage{Type: "ping"})
	assert.Contains(t, read(t, ctx, conn).Content, `"ping"`)

	write(t, ctx, conn, wsMessage{Type: "message"})
	assert.Equal(t, "error", read(t, ctx, conn).Type)

	write(t, ctx, conn, wsMessage{Type: "message", Content: "still here"})
	assert.Equal(t, "status", read(t, ctx, conn).Type)
	assert.Equal(t, "echo: still here", read(t, ctx, conn).Content)
}

func TestSessionsArePerConnection(t *testing.T) {
	ctx := context.Background()
	f := &fakeFactory{adapter: echo()}
	s, srv := newTestServer(t, f, "")

	a := dial(t, ctx, srv)
	b := dial(t, ctx, srv)

	write(t, ctx, a, wsMessage{Type: "message", Content: "from a"})
	read(t, ctx, a)
	assert.Equal(t, "echo: from a", read(t, ctx, a).Content)

	write(t, ctx, b, wsMessage{Type: "message", Content: "from b"})
	read(t, ctx, b)
	assert.Equal(t, "echo: from b", read(t, ctx, b).Content)

	assert.Equal(t, 2, s.ActiveSessions())
	f.mu.Lock()
	require.Len(t, f.sessions, 2)
	for _, sess := range f.sessions {
		// system, user, assistant
		assert.Len(t, sess.History(), 3)
	}
	assert.NotEqual(t, f.sessions[0].ID(), f.sessions[1].ID())
	f.mu.Unlock()

	a.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return s.ActiveSessions() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, nil, "")
	conn := dial(t, ctx, srv)

	assert.Equal(t, wsMessage{Type: "error", Content: notInitialized}, read(t, ctx, conn))
}

func TestDisconnectCancelsTurn(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	canceled := make(chan struct{})
	blocking := chat.AdapterFunc(func(ctx context.Context, _ []chat.Message, _ *chat.Params) (chat.Message, error) {
		close(started)
		<-ctx.Done()
		close(canceled)
		return chat.Message{}, ctx.Err()
	})
	_, srv := newTestServer(t, &fakeFactory{adapter: blocking}, "")
	conn := dial(t, ctx, srv)

	write(t, ctx, conn, wsMessage{Type: "message", Content: "slow"})
	read(t, ctx, conn)
	<-started
	conn.CloseNow()

	select {
	case <-canceled:
	case <-time.After(3 * time.Second):
		t.Fatal("turn was not canceled after disconnect")
	}
}
