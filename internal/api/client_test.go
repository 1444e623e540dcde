package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/pkg/chattypes"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := New(server.URL, 5*time.Second)
	client.SetTokenSource(staticToken("test-token"))
	return client, server
}

func TestClient_Login_Success(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/user/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "15551234567", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))

		writeJSON(w, map[string]string{"access_token": "tok-123"})
	}))

	token, err := client.Login(context.Background(), "15551234567", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestClient_Login_InvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Login(context.Background(), "15551234567", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_Login_ServiceError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Login(context.Background(), "15551234567", "hunter2")
	var svc *ServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, 500, svc.Status)
}

func TestClient_AuthenticatedRequests_CarryBearerAndRequestID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		writeJSON(w, []chattypes.Conversation{})
	}))

	_, err := client.ListChats(context.Background())
	require.NoError(t, err)
}

func TestClient_GetProfile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		writeJSON(w, chattypes.UserProfile{
			ID:           "u-1",
			Phone:        "15551234567",
			ReferralCode: "ABCD1234",
			SystemChatID: "chat-system",
		})
	}))

	profile, err := client.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-1", profile.ID)
	assert.Equal(t, "chat-system", profile.SystemChatID)
}

func TestClient_ListChats(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		writeJSON(w, []chattypes.Conversation{
			{ID: "c-1", Name: "Meadow Chat"},
			{ID: "c-2", Name: ""},
		})
	}))

	chats, err := client.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "c-1", chats[0].ID)
	assert.Equal(t, "", chats[1].Name)
}

func TestClient_GetChat_FiltersByID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "c-7", r.URL.Query().Get("id"))
		writeJSON(w, []chattypes.Conversation{{ID: "c-7", Name: "Trips"}})
	}))

	chat, err := client.GetChat(context.Background(), "c-7")
	require.NoError(t, err)
	assert.Equal(t, "Trips", chat.Name)
}

func TestClient_GetChat_EmptyResultIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []chattypes.Conversation{})
	}))

	_, err := client.GetChat(context.Background(), "missing")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 404, verr.Status)
}

func TestClient_CreateChat_OmitsEmptyName(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasName := body["name"]
		assert.False(t, hasName)
		writeJSON(w, chattypes.Conversation{ID: "c-new"})
	}))

	chat, err := client.CreateChat(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "c-new", chat.ID)
}

func TestClient_RenameChat_SendsHeaderAndBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "c-1", r.Header.Get("X-Chat-Id"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Trips", body["name"])
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.RenameChat(context.Background(), "c-1", "Trips"))
}

func TestClient_DeleteChat(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "c-1", r.Header.Get("X-Chat-Id"))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.DeleteChat(context.Background(), "c-1"))
}

func TestClient_MessageCount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/message/len", r.URL.Path)
		assert.Equal(t, "c-1", r.Header.Get("X-Chat-Id"))
		writeJSON(w, map[string]int{"len": 7})
	}))

	count, err := client.MessageCount(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestClient_GetMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("chat_index"))
		writeJSON(w, chattypes.Message{ChatIndex: 3, Role: chattypes.RoleUser, Content: "hi"})
	}))

	msg, err := client.GetMessage(context.Background(), "c-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, msg.ChatIndex)
	assert.Equal(t, chattypes.RoleUser, msg.Role)
}

func TestClient_PostMessage_ReturnsCanonicalRecord(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user", body["role"])
		writeJSON(w, chattypes.Message{ID: "m-1", ChatIndex: 4, Role: chattypes.RoleUser, Content: body["content"]})
	}))

	msg, err := client.PostMessage(context.Background(), "c-1", chattypes.RoleUser, "hello")
	require.NoError(t, err)
	assert.Equal(t, 4, msg.ChatIndex)
	assert.Equal(t, "hello", msg.Content)
}

func TestClient_PostMessage_RejectsInvalidRole(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("request should not reach the backend")
	}))

	_, err := client.PostMessage(context.Background(), "c-1", chattypes.Role("system"), "nope")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClient_StreamToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate/chat/token", r.URL.Path)
		writeJSON(w, map[string]string{"token": "single-use"})
	}))

	token, err := client.StreamToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "single-use", token)
}

func TestClient_StreamURL_UpgradesScheme(t *testing.T) {
	httpClient := New("http://example.com", time.Second)
	assert.Equal(t, "ws://example.com/generate/chat/ws?token=abc", httpClient.StreamURL("abc"))

	httpsClient := New("https://example.com", time.Second)
	assert.Equal(t, "wss://example.com/generate/chat/ws?token=abc", httpsClient.StreamURL("abc"))
}

func TestClient_StreamURL_EscapesToken(t *testing.T) {
	client := New("http://example.com", time.Second)
	assert.Equal(t, "ws://example.com/generate/chat/ws?token=a%2Fb", client.StreamURL("a/b"))
}

func TestClient_NetworkFailureIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close() // refuse connections

	client := New(server.URL, time.Second)
	client.SetTokenSource(staticToken("tok"))
	_, err := client.ListChats(context.Background())

	var svc *ServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, 0, svc.Status)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(401, ""), ErrUnauthorized)

	var verr *ValidationError
	require.ErrorAs(t, classify(422, "bad input"), &verr)
	assert.Equal(t, 422, verr.Status)
	assert.Equal(t, "bad input", verr.Message)

	var svc *ServiceError
	require.ErrorAs(t, classify(503, ""), &svc)
	assert.Equal(t, 503, svc.Status)

	assert.False(t, errors.Is(classify(503, ""), ErrUnauthorized))
}

func TestClassify_ServiceErrorKeepsResponseDetail(t *testing.T) {
	err := classify(500, "database down")

	var svc *ServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, 500, svc.Status)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "database down")

	// No body: the status alone is the message
	assert.Equal(t, "backend error (status 503)", classify(503, "").Error())
}
