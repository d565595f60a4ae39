// ABOUTME: HTTP surface tests against the fully assembled handler
// ABOUTME: Exercises users, chat, items, admin and upload endpoints end to end

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shopdesk/internal/catalog"
	"github.com/2389/shopdesk/internal/chat"
	"github.com/2389/shopdesk/internal/config"
	"github.com/2389/shopdesk/internal/store"
	"github.com/2389/shopdesk/internal/upload"
)

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(tmpDir, "test.db")
	cfg.Uploads.Dir = filepath.Join(tmpDir, "uploads")
	cfg.Metrics.Enabled = false

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.EnsureAdmin(t.Context(), &store.Admin{
		ID:       "admin-1",
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Name:     cfg.Admin.Name,
	}))

	uploads, err := upload.NewStore(cfg.Uploads.Dir, nil)
	require.NoError(t, err)

	b := chat.NewBroadcaster(nil)
	t.Cleanup(b.Close)

	chatSvc := chat.New(st, b, nil)
	catalogSvc := catalog.New(st, b, nil)

	return New(cfg, st, chatSvc, catalogSvc, uploads, b, nil), st
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, *testEnvelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, &env
}

func loginUser(t *testing.T, s *Server, name string) string {
	t.Helper()
	rec, env := doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{"name": name})
	require.Equal(t, http.StatusOK, rec.Code)

	var user struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.NotEmpty(t, user.ID)
	return user.ID
}

func TestServer_UserLogin_RegistersAndReuses(t *testing.T) {
	s, _ := newTestServer(t)

	id1 := loginUser(t, s, "Alice")
	id2 := loginUser(t, s, "alice")
	assert.Equal(t, id1, id2, "case-insensitive login reuses the account")

	rec, env := doJSON(t, s, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []struct {
		Name     string `json:"name"`
		IsOnline bool   `json:"isOnline"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Name, "stored spelling wins")
	assert.True(t, users[0].IsOnline)
}

func TestServer_UserLogin_RejectsEmptyName(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestServer_GetOrCreateChat_ReturnsWelcome(t *testing.T) {
	s, _ := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	rec, env := doJSON(t, s, http.MethodGet, "/api/chats/user/"+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Chat struct {
			ID          string `json:"id"`
			UnreadCount int    `json:"unreadCount"`
		} `json:"chat"`
		Messages []struct {
			Sender  string `json:"sender"`
			Message string `json:"message"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, 1, payload.Chat.UnreadCount)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "admin", payload.Messages[0].Sender)
	assert.Contains(t, payload.Messages[0].Message, "Alice")
}

func TestServer_GetOrCreateChat_UnknownUser(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodGet, "/api/chats/user/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestServer_ChatLookup_DispatchesTwoSegmentPaths(t *testing.T) {
	s, _ := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	// Both two-segment shapes resolve through the shared dispatcher
	rec, env := doJSON(t, s, http.MethodGet, "/api/chats/user/"+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Chat struct {
			ID string `json:"id"`
		} `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, _ = doJSON(t, s, http.MethodGet, "/api/chats/"+created.Chat.ID+"/messages", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The "user" literal wins: this is a lookup for user id "messages"
	rec, _ = doJSON(t, s, http.MethodGet, "/api/chats/user/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, s, http.MethodGet, "/api/chats/something/else", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_UserLogin_BroadcastsToAllAudiences(t *testing.T) {
	s, _ := newTestServer(t)

	aliceID := loginUser(t, s, "Alice")
	ch, _ := s.broadcaster.Subscribe(t.Context(), chat.UserAudience(aliceID))

	loginUser(t, s, "Bob")

	// A plain user audience hears both the login and the roster push
	var events []string
	for range 2 {
		select {
		case evt := <-ch:
			events = append(events, evt.Name)
		case <-time.After(time.Second):
			t.Fatal("login events not delivered to user audience")
		}
	}
	assert.Contains(t, events, chat.EventUserLoggedIn)
	assert.Contains(t, events, chat.EventUsersUpdated)
}

func TestServer_SendMessage_FullFlow(t *testing.T) {
	s, st := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	// Resolve the chat
	_, env := doJSON(t, s, http.MethodGet, "/api/chats/user/"+userID, nil)
	var created struct {
		Chat struct {
			ID string `json:"id"`
		} `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	chatID := created.Chat.ID

	// User sends
	rec, env := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/chats/%s/send/%s", chatID, userID),
		map[string]any{"message": "Hi", "sender": "user"})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var msg struct {
		Message string `json:"message"`
		Read    bool   `json:"read"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "Hi", msg.Message)
	assert.False(t, msg.Read)

	conv, err := st.GetConversation(t.Context(), chatID)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.UnreadCount)

	// Admin fetches with markRead
	rec, env = doJSON(t, s, http.MethodGet, "/api/chats/"+chatID+"/messages?markRead=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var messages []struct {
		Sender string `json:"sender"`
		Read   bool   `json:"read"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 2)
	for _, m := range messages {
		if m.Sender == "user" {
			assert.True(t, m.Read)
		}
	}

	conv, err = st.GetConversation(t.Context(), chatID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount)

	// Admin inbox shows the conversation
	rec, env = doJSON(t, s, http.MethodGet, "/api/chats/admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []struct {
		UserName    string `json:"userName"`
		LastMessage string `json:"lastMessage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Alice", summaries[0].UserName)
	assert.Equal(t, "Hi", summaries[0].LastMessage)
}

func TestServer_GetChatByID(t *testing.T) {
	s, _ := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	_, env := doJSON(t, s, http.MethodGet, "/api/chats/user/"+userID, nil)
	var created struct {
		Chat struct {
			ID string `json:"id"`
		} `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, env := doJSON(t, s, http.MethodGet, "/api/chats/"+created.Chat.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Chat struct {
			UserID string `json:"userId"`
		} `json:"chat"`
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, userID, payload.Chat.UserID)
	assert.Len(t, payload.Messages, 1)

	rec, _ = doJSON(t, s, http.MethodGet, "/api/chats/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SendMessage_NewChatPlaceholder(t *testing.T) {
	s, st := newTestServer(t)
	userID := loginUser(t, s, "Bob")

	rec, _ := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/chats/new/send/%s", userID),
		map[string]any{"message": "first", "sender": "user"})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	conv, err := st.GetConversationByUserID(t.Context(), userID)
	require.NoError(t, err)

	messages, err := st.GetMessages(t.Context(), conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1, "send-path creation has no welcome seed")
	assert.Equal(t, "first", messages[0].Body)
}

func TestServer_SendMessage_IncompleteAttachment(t *testing.T) {
	s, _ := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	rec, env := doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/chats/new/send/%s", userID),
		map[string]any{"message": "", "sender": "user", "fileUrl": "/uploads/x.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestServer_UpdateStatus(t *testing.T) {
	s, st := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	rec, _ := doJSON(t, s, http.MethodPut, "/api/chats/status/"+userID,
		map[string]any{"isOnline": false, "userType": "user"})
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := st.GetUser(t.Context(), userID)
	require.NoError(t, err)
	assert.False(t, user.Online)
}

func TestServer_AdminLogin(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "admin@shopdesk.local", "password": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	var admin struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &admin))
	assert.Equal(t, "admin-1", admin.ID)
	assert.NotContains(t, string(env.Data), "password", "credentials never leave the server")

	rec, env = doJSON(t, s, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "admin@shopdesk.local", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	rec, _ = doJSON(t, s, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "nobody@shopdesk.local", "password": "admin"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown email is indistinguishable from wrong password")
}

func TestServer_AdminProfile(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodPut, "/api/admin/profile/admin-1",
		map[string]string{"name": "Boss"})
	require.Equal(t, http.StatusOK, rec.Code)

	var admin struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &admin))
	assert.Equal(t, "Boss", admin.Name)
	assert.Equal(t, "admin@shopdesk.local", admin.Email, "empty email keeps the old value")
}

func TestServer_ItemLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	// Create
	rec, env := doJSON(t, s, http.MethodPost, "/api/items",
		map[string]any{"code": "SKU-1", "price": 1500})
	require.Equal(t, http.StatusCreated, rec.Code)

	var item struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, "available", item.Status)

	// Duplicate code
	rec, _ = doJSON(t, s, http.MethodPost, "/api/items",
		map[string]any{"code": "SKU-1", "price": 2000})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Invalid price
	rec, _ = doJSON(t, s, http.MethodPost, "/api/items",
		map[string]any{"code": "SKU-2", "price": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Send to user
	rec, env = doJSON(t, s, http.MethodPut, "/api/items/"+item.ID+"/send",
		map[string]string{"userId": userID})
	require.Equal(t, http.StatusOK, rec.Code)

	var sent struct {
		Status     string `json:"status"`
		SentToName string `json:"sentToName"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.Equal(t, "sold_out", sent.Status)
	assert.Equal(t, "Alice", sent.SentToName)

	// Filter by status
	rec, env = doJSON(t, s, http.MethodGet, "/api/items/status/sold_out", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)

	rec, _ = doJSON(t, s, http.MethodGet, "/api/items/status/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Delete
	rec, _ = doJSON(t, s, http.MethodDelete, "/api/items/"+item.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, s, http.MethodDelete, "/api/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeleteUser_DeactivatesConversation(t *testing.T) {
	s, st := newTestServer(t)
	userID := loginUser(t, s, "Alice")

	// Create the conversation first
	rec, _ := doJSON(t, s, http.MethodGet, "/api/chats/user/"+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, s, http.MethodDelete, "/api/users/"+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := st.GetUser(t.Context(), userID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	summaries, err := st.ListConversations(t.Context())
	require.NoError(t, err)
	assert.Empty(t, summaries, "deactivated conversation leaves the inbox")
}

func uploadFile(t *testing.T, s *Server, filename, contentType string, payload []byte) (*httptest.ResponseRecorder, *testEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/chats/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, &env
}

func TestServer_Upload_AcceptsImage(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := uploadFile(t, s, "photo.png", "image/png", bytes.Repeat([]byte{0xAB}, 1024))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var result struct {
		FileURL  string `json:"fileUrl"`
		FileName string `json:"fileName"`
		FileSize int64  `json:"fileSize"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Contains(t, result.FileURL, "/uploads/")
	assert.Equal(t, "photo.png", result.FileName)
	assert.Equal(t, int64(1024), result.FileSize)
}

func TestServer_Upload_RejectsNonImage(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := uploadFile(t, s, "doc.pdf", "application/pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}
