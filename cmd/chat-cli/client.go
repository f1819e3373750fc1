package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"biblo-chat-be/internal/dto"

	"github.com/gorilla/websocket"
)

// StreamClient runs chat turns over one /stream connection and remembers the session.
type StreamClient struct {
	conn      *websocket.Conn
	SessionID string
}

func dialStream(server, sessionID string) (*StreamClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(strings.TrimRight(server, "/")+"/stream", http.Header{
		"User-Agent": []string{"biblo-chat-cli"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return &StreamClient{conn: conn, SessionID: sessionID}, nil
}

func (c *StreamClient) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// TurnOutput is what a finished turn produced.
type TurnOutput struct {
	MessageID string
	Text      string
}

// Ask sends one prompt and calls onToken for every streamed token until the turn ends.
func (c *StreamClient) Ask(prompt string, onToken func(string)) (*TurnOutput, error) {
	if err := c.conn.WriteJSON(dto.StreamRequest{Prompt: prompt, SessionID: c.SessionID}); err != nil {
		return nil, fmt.Errorf("send prompt: %w", err)
	}

	out := &TurnOutput{}
	for {
		var frame dto.StreamFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}

		switch frame.Type {
		case dto.FrameSessionInfo:
			c.SessionID = frame.SessionID
		case dto.FrameMessageStart:
			out.MessageID = frame.MessageID
		case dto.FrameToken:
			if onToken != nil {
				onToken(frame.Token)
			}
		case dto.FrameMessageEnd:
			out.Text = frame.FullResponse
			return out, nil
		case dto.FrameError:
			return nil, fmt.Errorf("%s: %s", frame.Code, frame.Error)
		}
	}
}

// watchSession keeps a liveness socket open and pings it. The returned channel
// receives the final session status and is closed when the socket closes.
func watchSession(server, sessionID string, interval time.Duration) (<-chan string, func(), error) {
	url := strings.TrimRight(server, "/") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial liveness: %w", err)
	}

	statuses := make(chan string, 4)
	done := make(chan struct{})

	go func() {
		defer close(statuses)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame dto.StreamFrame
			if json.Unmarshal(data, &frame) == nil && frame.Type == dto.FrameSessionStatus {
				statuses <- frame.Status
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if conn.WriteMessage(websocket.TextMessage, []byte("ping")) != nil {
					return
				}
			}
		}
	}()

	stop := func() {
		close(done)
		conn.Close()
	}
	return statuses, stop, nil
}

// httpURL turns the websocket server address into the REST base URL.
func httpURL(server string) string {
	server = strings.TrimRight(server, "/")
	switch {
	case strings.HasPrefix(server, "wss://"):
		return "https://" + strings.TrimPrefix(server, "wss://")
	case strings.HasPrefix(server, "ws://"):
		return "http://" + strings.TrimPrefix(server, "ws://")
	default:
		return server
	}
}
