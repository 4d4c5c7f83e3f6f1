package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kindred/backend/internal/admin"
	"kindred/backend/internal/analysis"
	"kindred/backend/internal/api/handler"
	"kindred/backend/internal/auth"
	"kindred/backend/internal/chathub"
	"kindred/backend/internal/community"
	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/intake"
	"kindred/backend/internal/journal"
	"kindred/backend/internal/ledger"
	"kindred/backend/internal/localization"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/rewrite"
	"kindred/backend/internal/session"
	"kindred/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	cfg    *config.Config
	store  *storage.Memory
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour, CredentialDomain: "kindred.local"}
	store := storage.NewMemory()
	hub := chathub.NewHub()
	g := guard.Default()
	mod := moderation.NewService(store, moderation.NewMemorySuspensionStore(), nil, hub)
	l := ledger.NewLedger(store, hub, nil)
	loc, err := localization.Bundled()
	require.NoError(t, err)

	h := handler.NewHandler(handler.Handler{
		Auth:       auth.NewService(store, auth.NewMemoryRevoker(), cfg),
		Intake:     intake.NewService(g, rewrite.NewRewriter(nil, time.Second), l, mod),
		Ledger:     l,
		Matcher:    ledger.NewCoordinator(store, hub),
		Session:    session.New(store, hub, nil, g, mod),
		Moderation: mod,
		Journal:    journal.NewService(store),
		Board:      community.NewBoard(store, hub, nil, g, mod),
		Admin:      admin.NewConsole(store, hub, nil, mod, analysis.NewScanner(g)),
		Localizer:  loc,
	})
	r := gin.New()
	h.Register(r)
	return &testServer{cfg: cfg, store: store, router: r}
}

type call struct {
	method, path, token, lang, clientID string
	body                                interface{}
}

func (s *testServer) do(t *testing.T, c call) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

// signUp returns the token and user id.
func (s *testServer) signUp(t *testing.T, handle string) (string, string) {
	t.Helper()
	w, body := s.do(t, call{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"handle": handle, "password": "password123", "displayName": strings.ToUpper(handle),
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["id"].(string)
}

func TestSpeakAcceptAndChat(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	speaker, _ := s.signUp(t, "speaker")
	listener, _ := s.signUp(t, "listener")

	// Act
	w, body := s.do(t, call{method: http.MethodPost, path: "/speak", token: speaker, body: map[string]string{"text": "I feel so alone lately"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	requestID := body["requestId"].(string)
	assert.Equal(t, rewrite.DefaultAcknowledgment, body["reply"])

	w, _ = s.do(t, call{method: http.MethodGet, path: "/requests", token: listener})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), requestID)
	assert.NotContains(t, w.Body.String(), "alone lately", "raw text must never be stored")

	w, body = s.do(t, call{method: http.MethodPost, path: "/requests/" + requestID + "/accept", token: listener})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	roomID := body["roomId"].(string)

	w, _ = s.do(t, call{method: http.MethodPost, path: "/requests/" + requestID + "/accept", token: listener})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, call{method: http.MethodPost, path: "/rooms/" + roomID + "/messages", token: speaker, body: map[string]string{"content": "thank you for listening"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Assert
	w, _ = s.do(t, call{method: http.MethodGet, path: "/requests/mine", token: speaker})
	assert.Contains(t, w.Body.String(), roomID)

	w, _ = s.do(t, call{method: http.MethodGet, path: "/rooms/" + roomID + "/messages", token: listener})
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0]["type"])
	assert.Equal(t, "thank you for listening", msgs[1]["content"])

	outsider, _ := s.signUp(t, "outsider")
	w, _ = s.do(t, call{method: http.MethodGet, path: "/rooms/" + roomID + "/messages", token: outsider})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, call{method: http.MethodPost, path: "/rooms/" + roomID + "/leave", token: listener})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, body = s.do(t, call{method: http.MethodPost, path: "/rooms/" + roomID + "/messages", token: speaker, body: map[string]string{"content": "hello?"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "room_closed", body["code"])
}

func TestSpeak_CrisisReturnsPrompt(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signUp(t, "speaker")

	w, body := s.do(t, call{method: http.MethodPost, path: "/speak", token: token, lang: "uk", body: map[string]string{"text": "I want to die"}})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "block-crisis", body["code"])
	options := body["options"].([]interface{})
	require.Len(t, options, 2)
	assert.Equal(t, "specialist", options[0].(map[string]interface{})["choice"])
	assert.Contains(t, body["error"], "наодинці")

	reqs, err := s.store.ListRequests(context.Background(), storage.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs)

	w, body = s.do(t, call{method: http.MethodPost, path: "/crisis/choice", token: token, body: map[string]string{"choice": "peer"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "speak", body["next"])

	w, _ = s.do(t, call{method: http.MethodPost, path: "/crisis/choice", token: token, body: map[string]string{"choice": "later"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToxicEchoSuspendsClient(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signUp(t, "rude")

	w, body := s.do(t, call{method: http.MethodPost, path: "/echoes/angry", token: token, clientID: "device-1", body: map[string]string{"content": "you are all idiots"}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "block-toxicity", body["code"])

	w, body = s.do(t, call{method: http.MethodGet, path: "/echoes/calm", token: token, clientID: "device-1"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "suspended", body["code"])
	assert.Equal(t, "1d 0h", body["remaining"])

	// the status endpoint stays reachable
	w, body = s.do(t, call{method: http.MethodGet, path: "/suspension", token: token, clientID: "device-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["suspended"])

	// another installation of the same account is not suspended
	w, _ = s.do(t, call{method: http.MethodGet, path: "/echoes/calm", token: token, clientID: "device-2"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEchoCrisisReturnsPrompt(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signUp(t, "writer")

	w, body := s.do(t, call{method: http.MethodPost, path: "/echoes/sad", token: token, clientID: "device-1", body: map[string]string{"content": "you idiot, I want to die"}})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "block-crisis", body["code"])
	require.Len(t, body["options"], 2)

	// the toxic part still suspends the client
	w, body = s.do(t, call{method: http.MethodGet, path: "/echoes/calm", token: token, clientID: "device-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "suspended", body["code"])
}

func TestPrivacyWarning(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signUp(t, "speaker")

	w, body := s.do(t, call{method: http.MethodPost, path: "/speak", token: token, body: map[string]string{"text": "call me at 010-1234-5678"}})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "block-privacy", body["code"])
	assert.EqualValues(t, config.PrivacyWarningTTL.Milliseconds(), body["ttlMs"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signUp(t, "alice")

	w, _ := s.do(t, call{method: http.MethodGet, path: "/journal"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, call{method: http.MethodPost, path: "/auth/signin", body: map[string]string{"handle": "alice", "password": "wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "credentials", body["code"])

	w, body = s.do(t, call{method: http.MethodPost, path: "/auth/signup", body: map[string]string{"handle": "ALICE", "password": "password123"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "handle_taken", body["code"])

	w, body = s.do(t, call{method: http.MethodPost, path: "/auth/signup", body: map[string]string{"handle": "bob", "password": "short"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["fields"])

	w, body = s.do(t, call{method: http.MethodPost, path: "/auth/signup", body: map[string]string{"handle": "bob", "password": strings.Repeat("a", 100)}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["fields"])

	w, body = s.do(t, call{method: http.MethodPost, path: "/auth/signup", body: map[string]string{"handle": "bob", "password": strings.Repeat("ж", 40)}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid", body["code"])

	w, body = s.do(t, call{method: http.MethodPatch, path: "/auth/profile", token: token, body: map[string]string{"displayName": ""}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Anonymous", body["user"].(map[string]interface{})["displayName"])

	w, _ = s.do(t, call{method: http.MethodPost, path: "/auth/signout", token: token})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = s.do(t, call{method: http.MethodGet, path: "/journal", token: token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJournalIsPrivate(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.signUp(t, "alice")
	bob, _ := s.signUp(t, "bob")

	w, _ := s.do(t, call{method: http.MethodPost, path: "/journal", token: alice, body: map[string]string{"content": "dear diary"}})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(t, call{method: http.MethodGet, path: "/journal", token: alice})
	assert.Contains(t, w.Body.String(), "dear diary")
	w, _ = s.do(t, call{method: http.MethodGet, path: "/journal", token: bob})
	assert.NotContains(t, w.Body.String(), "dear diary")
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	user, _ := s.signUp(t, "writer")
	_, adminID := s.signUp(t, "moderator")
	s.cfg.AdminUserIDs = []string{adminID}
	w, body := s.do(t, call{method: http.MethodPost, path: "/auth/signin", body: map[string]string{"handle": "moderator", "password": "password123"}})
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := body["token"].(string)

	w, _ = s.do(t, call{method: http.MethodGet, path: "/admin/reports", token: user})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, call{method: http.MethodPost, path: "/journal", token: user, body: map[string]string{"content": "I keep thinking about suicide"}})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = s.do(t, call{method: http.MethodPost, path: "/admin/journal/scan", token: adminToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, body["flags"], 1)

	w, _ = s.do(t, call{method: http.MethodPost, path: "/admin/journal/scan?since=yesterday", token: adminToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, call{method: http.MethodDelete, path: "/admin/echoes/999", token: adminToken})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(t, call{method: http.MethodDelete, path: "/admin/echoes/abc", token: adminToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, call{method: http.MethodGet, path: "/admin/bans", token: adminToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoomStream(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	speaker, _ := s.signUp(t, "speaker")
	listener, _ := s.signUp(t, "listener")
	_, body := s.do(t, call{method: http.MethodPost, path: "/speak", token: speaker, body: map[string]string{"text": "rough week"}})
	_, body = s.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/requests/%s/accept", body["requestId"]), token: listener})
	roomID := body["roomId"].(string)

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomID + "?token=" + speaker

	// Act
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Assert
	type frame struct {
		Type string          `json:"type"`
		Code string          `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	read := func() (frame, []map[string]interface{}) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		var msgs []map[string]interface{}
		if f.Type == "snapshot" {
			require.NoError(t, json.Unmarshal(f.Data, &msgs))
		}
		return f, msgs
	}

	first, msgs := read()
	assert.Equal(t, "snapshot", first.Type)
	assert.Len(t, msgs, 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"content": "my email is me@example.com"}))
	errFrame, _ := read()
	assert.Equal(t, "error", errFrame.Type)
	assert.Equal(t, "block-privacy", errFrame.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"content": ""}))
	errFrame, _ = read()
	assert.Equal(t, "invalid", errFrame.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"content": "I want to die"}))
	errFrame, _ = read()
	assert.Equal(t, "block-crisis", errFrame.Code)
	var crisis struct {
		Options []map[string]string `json:"options"`
	}
	require.NoError(t, json.Unmarshal(errFrame.Data, &crisis))
	require.Len(t, crisis.Options, 2)
	assert.Equal(t, "specialist", crisis.Options[0]["choice"])

	// over the character limit is rejected with a frame, not a dropped socket
	require.NoError(t, conn.WriteJSON(map[string]string{"content": strings.Repeat("я", 4001)}))
	errFrame, _ = read()
	assert.Equal(t, "invalid", errFrame.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"content": "hi there"}))
	for {
		f, msgs := read()
		if f.Type == "snapshot" && len(msgs) == 2 {
			assert.Equal(t, "hi there", msgs[1]["content"])
			break
		}
	}

	long := strings.Repeat("привіт ", 500)
	require.NoError(t, conn.WriteJSON(map[string]string{"content": long}))
	for {
		f, msgs := read()
		require.NotEqual(t, "error", f.Type)
		if f.Type == "snapshot" && len(msgs) == 3 {
			assert.Equal(t, strings.TrimSpace(long), msgs[2]["content"])
			break
		}
	}

	// non-participants never get a stream
	outsider, _ := s.signUp(t, "outsider")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/rooms/"+roomID+"?token="+outsider, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
