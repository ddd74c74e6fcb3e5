package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ncn914491/groupsync/internal/auth"
	"github.com/Ncn914491/groupsync/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *auth.Session) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session := auth.NewSession()
	require.NoError(t, session.SetToken("tok-test"))

	client, err := NewHTTPClient(HTTPClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	}, session)
	require.NoError(t, err)
	return client, session
}

func TestListGroups(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/groups", r.URL.Path)
		require.Equal(t, "Bearer tok-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]models.Group{
			{ID: "g1", Name: "CS Study Group", IsMember: true, MemberCount: 4},
			{ID: "g2", Name: "Placement Prep", IsMember: false},
		})
	}))

	groups, err := client.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.True(t, groups[0].IsMember)
	require.False(t, groups[1].IsMember)
}

func TestListGroupsRejectsMalformedPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missing ids: fails boundary validation.
		_, _ = w.Write([]byte(`[{"name":"no id"}]`))
	}))

	_, err := client.ListGroups(context.Background())
	var payloadErr *PayloadError
	require.ErrorAs(t, err, &payloadErr)
}

func TestListMessagesWithCursor(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/groups/g1/messages", r.URL.Path)
		require.Equal(t, "m5", r.URL.Query().Get("after"))
		_ = json.NewEncoder(w).Encode([]models.Message{
			{ID: "m6", Content: "hi", Author: models.User{ID: "u1", DisplayName: "Alice"}, CreatedAt: time.Now()},
		})
	}))

	messages, err := client.ListMessages(context.Background(), "g1", ListOptions{AfterID: "m5"})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "m6", messages[0].ID)
}

func TestCreateMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/groups/g1/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "hello", body["content"])

		_ = json.NewEncoder(w).Encode(models.Message{
			ID:        "m1",
			Content:   "hello",
			Author:    models.User{ID: "u1", DisplayName: "Alice"},
			CreatedAt: time.Now(),
		})
	}))

	message, err := client.CreateMessage(context.Background(), "g1", "hello")
	require.NoError(t, err)
	require.Equal(t, "m1", message.ID)
}

func TestJoinAndLeave(t *testing.T) {
	var joined, left bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/groups/g1/join":
			joined = true
		case "/api/groups/g1/leave":
			left = true
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	require.NoError(t, client.JoinGroup(context.Background(), "g1"))
	require.NoError(t, client.LeaveGroup(context.Background(), "g1"))
	require.True(t, joined)
	require.True(t, left)
}

func TestUnauthorizedMarksSessionExpired(t *testing.T) {
	client, session := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.ListGroups(context.Background())
	require.ErrorIs(t, err, auth.ErrExpired)
	require.False(t, session.Valid())

	// Subsequent calls fail locally without reaching the network.
	_, err = client.ListGroups(context.Background())
	require.ErrorIs(t, err, auth.ErrExpired)
}

func TestServerErrorSurfacesStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database down"}`))
	}))

	_, err := client.ListGroups(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.Contains(t, statusErr.Error(), "database down")
}
