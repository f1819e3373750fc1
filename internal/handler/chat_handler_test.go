package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/repository/memory"
	"biblo-chat-be/internal/service"
	internalWS "biblo-chat-be/internal/websocket"
	sessionEvents "biblo-chat-be/pkg/session/events"
	"biblo-chat-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChatbot struct {
	mu       sync.Mutex
	requests []service.TurnRequest
}

func (c *scriptedChatbot) StreamTurn(ctx context.Context, req service.TurnRequest, emit service.Emit) (*service.TurnResult, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if req.Prompt == "" {
		_ = emit(dto.ErrorFrame(dto.ErrCodeNoPrompt, service.ErrNoPrompt.Error()))
		return nil, service.ErrNoPrompt
	}
	frames := []dto.StreamFrame{
		dto.SessionInfoFrame("s-1"),
		dto.MessageStartFrame("a1"),
		dto.TokenFrame("안녕"),
		dto.TokenFrame("하세요"),
		dto.MessageEndFrame("a1", "안녕하세요", nil),
	}
	for _, f := range frames {
		if err := emit(f); err != nil {
			return nil, service.ErrClientGone
		}
	}
	return &service.TurnResult{SessionID: "s-1", AssistantMessageID: "a1", Domain: store.DomainLibrary}, nil
}

type testServer struct {
	url      string
	app      *fiber.App
	chatbot  *scriptedChatbot
	repo     *memory.SessionRepository
	sessions service.ISessionService
	hub      *internalWS.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNopLogger()
	repo := memory.NewSessionRepository(memory.SessionRepositoryConfig{})

	var sessions service.ISessionService
	hub := internalWS.NewHub(nil, func(id string) bool { return sessions.Touch(id) }, log)
	sessions = service.NewSessionService(repo, nil, nil, sessionEvents.NewNatsPublisher(nil, log), hub, log, log)

	chatbot := &scriptedChatbot{}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewChatHandler(chatbot, sessions, hub, log).RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return &testServer{
		url:      "ws://" + ln.Addr().String(),
		app:      app,
		chatbot:  chatbot,
		repo:     repo,
		sessions: sessions,
		hub:      hub,
	}
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15")
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *gorilla.Conn) dto.StreamFrame {
	t.Helper()
	var frame dto.StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestChatHandler_StreamRunsTurns(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv.url+"/stream")

	require.NoError(t, conn.WriteJSON(dto.StreamRequest{Prompt: "안녕"}))

	var types []string
	var tokens string
	for {
		frame := readFrame(t, conn)
		types = append(types, frame.Type)
		tokens += frame.Token
		if frame.Type == dto.FrameMessageEnd {
			assert.Equal(t, "안녕하세요", frame.FullResponse)
			break
		}
	}
	assert.Equal(t, []string{
		dto.FrameSessionInfo, dto.FrameMessageStart, dto.FrameToken, dto.FrameToken, dto.FrameMessageEnd,
	}, types)
	assert.Equal(t, "안녕하세요", tokens)

	// A second turn on the same connection.
	require.NoError(t, conn.WriteJSON(dto.StreamRequest{Prompt: "", SessionID: "s-1"}))
	frame := readFrame(t, conn)
	assert.Equal(t, dto.FrameError, frame.Type)
	assert.Equal(t, dto.ErrCodeNoPrompt, frame.Code)

	srv.chatbot.mu.Lock()
	defer srv.chatbot.mu.Unlock()
	require.Len(t, srv.chatbot.requests, 2)
	assert.Equal(t, "s-1", srv.chatbot.requests[1].SessionID)
	assert.Contains(t, srv.chatbot.requests[0].Client.Browser, "Safari")
	assert.NotEmpty(t, srv.chatbot.requests[0].Client.IP)
}

func TestChatHandler_StreamRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv.url+"/stream")

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("not json")))
	frame := readFrame(t, conn)
	assert.Equal(t, dto.FrameError, frame.Type)
	assert.Equal(t, dto.ErrCodeInvalidRequest, frame.Code)
}

func TestChatHandler_RequiresUpgrade(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/stream", "/ws/s-1"} {
		resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode, path)
	}
}

func TestChatHandler_LivenessUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv.url+"/ws/missing")

	frame := readFrame(t, conn)
	assert.Equal(t, dto.FrameSessionStatus, frame.Type)
	assert.Equal(t, dto.SessionStatusNotFound, frame.Status)

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestChatHandler_LivenessPingAndEnd(t *testing.T) {
	srv := newTestServer(t)
	session := srv.repo.Create(store.DomainLibrary, store.ClientMeta{})
	_, err := session.AppendMessage(store.RoleUser, "대출 기간은?", "")
	require.NoError(t, err)

	conn := dial(t, srv.url+"/ws/"+session.ID())

	frame := readFrame(t, conn)
	assert.Equal(t, dto.SessionStatusActive, frame.Status)
	require.Len(t, frame.ConversationHistory, 1)

	before := session.LastInteractionAt()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("ping")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))
	assert.True(t, session.LastInteractionAt().After(before))

	require.NoError(t, srv.sessions.EndSession(context.Background(), session.ID()))

	frame = readFrame(t, conn)
	assert.Equal(t, dto.FrameSessionStatus, frame.Type)
	assert.Equal(t, dto.SessionStatusEnded, frame.Status)

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	var decoded map[string]interface{}
	raw, _ := json.Marshal(frame)
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "token")
}

func TestChatHandler_LivenessAttachEndDetachCycles(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 5; i++ {
		session := srv.repo.Create(store.DomainCompany, store.ClientMeta{})
		conn := dial(t, srv.url+"/ws/"+session.ID())

		frame := readFrame(t, conn)
		require.Equal(t, dto.SessionStatusActive, frame.Status)
		require.Eventually(t, func() bool { return srv.hub.ClientCount(session.ID()) == 1 }, time.Second, 5*time.Millisecond)

		require.NoError(t, srv.sessions.EndSession(context.Background(), session.ID()))

		frame = readFrame(t, conn)
		assert.Equal(t, dto.SessionStatusEnded, frame.Status)
		_, _, err := conn.ReadMessage()
		require.Error(t, err)
		conn.Close()

		assert.Zero(t, srv.hub.ClientCount(session.ID()))
	}

	// Pooled connections handed back by the finished handlers still serve new sockets.
	conn := dial(t, srv.url+"/stream")
	require.NoError(t, conn.WriteJSON(dto.StreamRequest{Prompt: "", SessionID: "s-1"}))
	assert.Equal(t, dto.ErrCodeNoPrompt, readFrame(t, conn).Code)
}

func TestChatHandler_LivenessClosesWhenSessionVanished(t *testing.T) {
	srv := newTestServer(t)
	session := srv.repo.Create(store.DomainLibrary, store.ClientMeta{})
	conn := dial(t, srv.url+"/ws/"+session.ID())
	require.Equal(t, dto.SessionStatusActive, readFrame(t, conn).Status)

	// Removed without a hub notification, as when a socket attaches during teardown.
	_, ok := srv.repo.Delete(session.ID())
	require.True(t, ok)

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("ping")))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNormalClosure))
	assert.Eventually(t, func() bool { return srv.hub.ClientCount(session.ID()) == 0 }, time.Second, 5*time.Millisecond)
}
