package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yoockh/livecoach/internal/live"
	"github.com/yoockh/livecoach/internal/logger"
	"github.com/yoockh/livecoach/internal/utils"
)

// echoLive accepts session "s1" and answers every frame with its length.
type echoLive struct {
	served chan live.Summary
}

func (e *echoLive) Admit(p live.Params) error {
	if p.SessionID != "s1" {
		return utils.E(utils.CodeInvalidArgument, "echoLive.Admit", "session_id is required", nil)
	}
	return nil
}

func (e *echoLive) Serve(_ context.Context, p live.Params, conn live.Conn) (live.Summary, error) {
	defer conn.Close()
	_ = conn.WriteJSON(map[string]string{"type": live.TypeConnectionEstablished, "room": p.RoomName})
	for {
		b, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.WriteJSON(map[string]int{"len": len(b)})
	}
	sum := live.Summary{SessionID: p.SessionID, State: live.StateClosed}
	e.served <- sum
	return sum, nil
}

func newServer(t *testing.T, svc LiveService, origins ...string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWSHandler(context.Background(), svc, logger.Discard(), 1<<10, origins)
	r.GET("/ws/socket_server", h.LiveWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/socket_server?" + query
}

func TestLiveWSRejectsInvalidQuery(t *testing.T) {
	srv := newServer(t, &echoLive{served: make(chan live.Summary, 1)})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "room_name=conference_room"), nil)
	if err == nil {
		t.Fatal("dial should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("resp = %+v", resp)
	}
	defer resp.Body.Close()

	var body APIError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != utils.CodeInvalidArgument {
		t.Fatalf("body = %+v", body)
	}
}

func TestLiveWSServesAcceptedConnection(t *testing.T) {
	svc := &echoLive{served: make(chan live.Summary, 1)}
	srv := newServer(t, svc)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "session_id=s1&room_name=board_room_1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var hello map[string]string
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello["type"] != live.TypeConnectionEstablished || hello["room"] != "board_room_1" {
		t.Fatalf("hello = %v", hello)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"media"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var echo map[string]int
	if err := conn.ReadJSON(&echo); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if echo["len"] != 16 {
		t.Fatalf("echo = %v", echo)
	}
	_ = conn.Close()

	select {
	case sum := <-svc.served:
		if sum.SessionID != "s1" {
			t.Fatalf("summary = %+v", sum)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not finish after client hang-up")
	}
}

func TestLiveWSEnforcesReadLimit(t *testing.T) {
	svc := &echoLive{served: make(chan live.Summary, 1)}
	srv := newServer(t, svc)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "session_id=s1&room_name=conference_room"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello map[string]string
	_ = conn.ReadJSON(&hello)
	_ = conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 4<<10)))

	select {
	case <-svc.served:
	case <-time.After(5 * time.Second):
		t.Fatal("oversized frame should end the connection")
	}
}

func TestLiveWSChecksOrigin(t *testing.T) {
	srv := newServer(t, &echoLive{served: make(chan live.Summary, 1)}, "https://coach.example.com")

	hdr := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "session_id=s1&room_name=conference_room"), hdr)
	if err == nil {
		t.Fatal("dial from foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %+v", resp)
	}

	hdr.Set("Origin", "https://coach.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "session_id=s1&room_name=conference_room"), hdr)
	if err != nil {
		t.Fatalf("dial from allowed origin: %v", err)
	}
	_ = conn.Close()
}
