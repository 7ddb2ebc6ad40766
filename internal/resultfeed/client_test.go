package resultfeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Token: token, Timeout: 2 * time.Second}, zap.NewNop())
}

func TestBattleLogRequest(t *testing.T) {
	var gotPath, gotAuth, gotAccept string
	client := newTestClient(t, "secret-token", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"battleTime":"20251224T100000.000Z","type":"PvP","team":[{"tag":"#2PP","crowns":1}],"opponent":[{"tag":"#P0LYQ2","crowns":0}]}]`))
	})

	battles, err := client.BattleLog(context.Background(), " 2pp")
	require.NoError(t, err)

	assert.Equal(t, "/v1/players/%232PP/battlelog", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
	require.Len(t, battles, 1)
	assert.Equal(t, "20251224T100000.000Z", battles[0].BattleTime)
	assert.NotEmpty(t, battles[0].Raw)
}

func TestBattleLogMissingToken(t *testing.T) {
	called := false
	client := newTestClient(t, "  ", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.BattleLog(context.Background(), "#2PP")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.False(t, called, "no request should be sent without a token")
}

func TestBattleLogHTTPError(t *testing.T) {
	client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"reason":"accessDenied"}`))
	})

	_, err := client.BattleLog(context.Background(), "#2PP")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Contains(t, httpErr.Body, "accessDenied")
}

func TestBattleLogParseError(t *testing.T) {
	client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := client.BattleLog(context.Background(), "#2PP")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Path, "battlelog")
}

func TestBattleLogTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	client := NewClient(Options{BaseURL: srv.URL, Token: "token", Timeout: 50 * time.Millisecond}, zap.NewNop())

	_, err := client.BattleLog(context.Background(), "#2PP")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Zero(t, httpErr.Status)
	assert.Error(t, errors.Unwrap(httpErr))
}

func TestCards(t *testing.T) {
	client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/cards", r.URL.Path)
		_, _ = w.Write([]byte(`{"items":[
			{"id":26000000,"name":"Knight","maxLevel":14,"iconUrls":{"medium":"https://cdn/knight.png"}},
			{"id":26000001,"name":"Archers","maxLevel":14,"iconUrls":{"large":"https://cdn/archers-large.png"}}
		]}`))
	})

	cards, err := client.Cards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "https://cdn/knight.png", cards[0].IconURL())
	assert.Equal(t, "https://cdn/archers-large.png", cards[1].IconURL())
}
