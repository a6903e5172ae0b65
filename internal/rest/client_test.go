package rest_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackswars/warsync/internal/rest"
	"github.com/stackswars/warsync/internal/wstest"
)

func newClient(t *testing.T, srv *wstest.Server) *rest.Client {
	t.Helper()
	c, err := rest.New(rest.Config{BaseURL: srv.BaseURL()})
	require.NoError(t, err)
	return c
}

func TestGames(t *testing.T) {
	t.Parallel()

	srv := wstest.NewServer()
	t.Cleanup(srv.Close)
	srv.Games = []rest.Game{
		{ID: "g1", Name: "Word Duel", Path: "word-duel", MinPlayers: 2, MaxPlayers: 2, MinEntryFee: 5},
		{ID: "g2", Name: "Pulse", Path: "pulse", MinPlayers: 2, MaxPlayers: 8},
	}

	games, err := newClient(t, srv).Games(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "word-duel", games[0].Path)
	assert.Equal(t, 8, games[1].MaxPlayers)
}

func TestSeason(t *testing.T) {
	t.Parallel()

	srv := wstest.NewServer()
	t.Cleanup(srv.Close)
	srv.Season = rest.Season{
		ID:       "s3",
		Name:     "Season 3",
		StartsAt: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		Active:   true,
	}

	season, err := newClient(t, srv).Season(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3", season.ID)
	assert.True(t, season.Active)
	assert.True(t, season.StartsAt.Equal(srv.Season.StartsAt))
}

func TestMe(t *testing.T) {
	t.Parallel()

	srv := wstest.NewServer()
	t.Cleanup(srv.Close)
	srv.Me = rest.Session{ID: "u1", Username: "kas", Address: "SP2ABC"}

	me, err := newClient(t, srv).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kas", me.Username)
	assert.Equal(t, "SP2ABC", me.Address)
}

func TestMeUnauthenticated(t *testing.T) {
	t.Parallel()

	srv := wstest.NewServer()
	t.Cleanup(srv.Close)
	srv.MeStatus = http.StatusUnauthorized

	_, err := newClient(t, srv).Me(context.Background())
	var apiErr *rest.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "401")
}

func TestBadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := rest.New(rest.Config{BaseURL: "http://[::1"})
	assert.Error(t, err)
}
