package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lawchat/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func TestAsk_Success(t *testing.T) {
	var got AskRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ask", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"answer":"A","sources":["http://x"],"sid":"s1","mid":"m1"}`)
	})

	resp, err := c.Ask(context.Background(), AskRequest{Q: "hours?", SID: ""})
	require.NoError(t, err)
	require.Equal(t, "hours?", got.Q)
	require.Equal(t, "A", resp.Answer)
	require.Equal(t, []string{"http://x"}, resp.Sources)
	require.Equal(t, "s1", resp.SID)
	require.Equal(t, "m1", resp.MID)
}

func TestAsk_ErrorBodyIsNotATransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"bad"}`)
	})

	resp, err := c.Ask(context.Background(), AskRequest{Q: "x"})
	require.NoError(t, err)
	require.Equal(t, "bad", resp.Error)
}

func TestAsk_StatusWithoutBodyFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{}`)
	})

	resp, err := c.Ask(context.Background(), AskRequest{Q: "x"})
	require.NoError(t, err)
	require.Contains(t, resp.Error, "502")
}

func TestAsk_NonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>gateway</html>")
	})

	_, err := c.Ask(context.Background(), AskRequest{Q: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode ask response")
}

func TestAsk_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Ask(ctx, AskRequest{Q: "slow"})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/history", r.URL.Path)
		require.Equal(t, "s 1", r.URL.Query().Get("sid"))
		_, _ = io.WriteString(w, `{"history":[{"role":"user","content":"q","ts":1700000000000},{"role":"assistant","content":"a","sources":["u"],"ts":"2024-01-02T03:04:05Z"}]}`)
	})

	history, err := c.History(context.Background(), "s 1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, model.RoleUser, history[0].Role)
	require.Equal(t, int64(1700000000000), history[0].TS.UnixMilli())
	require.Equal(t, []string{"u"}, history[1].Sources)
	require.Equal(t, 2024, history[1].TS.Year())
}

func TestHistory_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	history, err := c.History(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, history)
	require.Empty(t, history)
}

func TestFeedback(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/feedback", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	yes := true
	require.NoError(t, c.Feedback(context.Background(), FeedbackRequest{SID: "s1", MID: "m1", Correct: &yes}))
	require.Equal(t, "s1", body["sid"])
	require.Equal(t, "m1", body["mid"])
	require.Equal(t, true, body["correct"])
	require.Equal(t, "", body["comment"])
}

func TestFeedback_NotOK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false}`)
	})
	require.Error(t, c.Feedback(context.Background(), FeedbackRequest{SID: "s1"}))
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["password"] != "pw" {
			_, _ = io.WriteString(w, `{"error":"Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok","role":"admin"}`)
	})

	login, err := c.Login(context.Background(), "dean", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok", login.Token)
	require.Equal(t, "admin", login.Role)
	require.Equal(t, "dean", login.Username)

	_, err = c.Login(context.Background(), "dean", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestAdmin_SessionsSendsTokenAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/sessions", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "tok", r.Header.Get("x-admin-token"))
		q := r.URL.Query()
		require.Equal(t, "25", q.Get("limit"))
		require.Equal(t, "50", q.Get("skip"))
		require.Equal(t, "tuition", q.Get("q"))
		require.Equal(t, "2024-01-01", q.Get("from"))
		require.False(t, q.Has("to"))
		_, _ = io.WriteString(w, `{"rows":[{"sid":"s1","count":4,"createdAt":"2024-01-01T00:00:00Z"}],"total":51}`)
	})

	page, err := c.Admin("tok").Sessions(context.Background(), SessionQuery{Limit: 25, Skip: 50, Q: "tuition", From: "2024-01-01"})
	require.NoError(t, err)
	require.Equal(t, 51, page.Total)
	require.Len(t, page.Rows, 1)
	require.Equal(t, 4, *page.Rows[0].Count)
	require.True(t, page.Rows[0].UpdatedAt.IsZero())
}

func TestAdmin_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
	})
	_, err := c.Admin("bad").Session(context.Background(), "s1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAdmin_SessionPathEscaped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/session/a%2Fb", r.URL.EscapedPath())
		require.Equal(t, http.MethodDelete, r.Method)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	require.NoError(t, c.Admin("tok").DeleteSession(context.Background(), "a/b"))
}

func TestAdmin_Export(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/export.ndjson", r.URL.Path)
		require.Equal(t, "tok", r.URL.Query().Get("token"))
		_, _ = io.WriteString(w, "{\"sid\":\"s1\"}\n{\"sid\":\"s2\"}\n")
	})

	var buf bytes.Buffer
	n, err := c.Admin("tok").Export(context.Background(), &buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	require.Equal(t, "{\"sid\":\"s1\"}\n{\"sid\":\"s2\"}\n", buf.String())
}

func TestAdmin_ExportForbidden(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":"bad token"}`)
	})
	var buf bytes.Buffer
	_, err := c.Admin("tok").Export(context.Background(), &buf)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, buf.Len())
}

func TestAdmin_OverridesAndUsers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/admin/override/o1":
			var patch map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			require.Equal(t, true, patch["force"])
			require.NotContains(t, patch, "question")
			_, _ = io.WriteString(w, `{"ok":true,"rows":[{"_id":"o1","question":"q","answer":"a","force":true}]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/admin/users":
			_, _ = io.WriteString(w, `[{"username":"dean","role":"admin"}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/admin/compare-models":
			_, _ = io.WriteString(w, `{"results":[{"model":"m1","answer":"x"},{"model":"m2","error":"timeout"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	admin := c.Admin("tok")
	ctx := context.Background()

	force := true
	rows, err := admin.UpdateOverride(ctx, "o1", model.OverridePatch{Force: &force})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "o1", rows[0].Key())

	users, err := admin.Users(ctx)
	require.NoError(t, err)
	require.Equal(t, "dean", users[0].Username)

	results, err := admin.CompareModels(ctx, CompareRequest{Q: "q", Models: []string{"m1", "m2"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "timeout", results[1].Error)

	err = admin.DeleteUser(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}
