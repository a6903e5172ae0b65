package pulse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fold(t *testing.T, p Plugin, state any, frame string) State {
	t.Helper()
	next := p.HandleMessage(state, json.RawMessage(frame))
	st, ok := next.(State)
	require.True(t, ok, "fold must return a State")
	return st
}

func TestRoundLifecycle(t *testing.T) {
	t.Parallel()

	p := New()
	st := fold(t, p, p.InitialState(), `{"type":"roundStart","round":1}`)
	assert.Equal(t, 1, st.Round)
	assert.Equal(t, phaseArmed, st.Phase)

	st = fold(t, p, st, `{"type":"pulse","round":1}`)
	assert.Equal(t, phaseFired, st.Phase)

	st = fold(t, p, st, `{"type":"tap","round":1,"playerId":"u1","username":"kas","reactionMs":184}`)
	require.Len(t, st.Results, 1)
	assert.Equal(t, 184, st.Results[0].ReactionMs)

	st = fold(t, p, st, `{"type":"roundEnd","round":1,"scores":{"u1":1}}`)
	assert.Equal(t, phaseScoring, st.Phase)
	assert.Equal(t, 1, st.Scores["u1"])

	st = fold(t, p, st, `{"type":"roundStart","round":2}`)
	assert.Empty(t, st.Results, "a new round clears the tap board")
	assert.Equal(t, 1, st.Scores["u1"], "scores carry across rounds")
}

func TestStaleRoundMessagesIgnored(t *testing.T) {
	t.Parallel()

	p := New()
	st := fold(t, p, p.InitialState(), `{"type":"roundStart","round":3}`)
	st = fold(t, p, st, `{"type":"pulse","round":2}`)
	assert.Equal(t, phaseArmed, st.Phase)

	st = fold(t, p, st, `{"type":"tap","round":2,"playerId":"u1","reactionMs":90}`)
	assert.Empty(t, st.Results)
}

func TestDuplicateTapReplaces(t *testing.T) {
	t.Parallel()

	p := New()
	st := fold(t, p, p.InitialState(), `{"type":"roundStart","round":1}`)
	st = fold(t, p, st, `{"type":"tap","round":1,"playerId":"u1","username":"kas","reactionMs":250}`)
	st = fold(t, p, st, `{"type":"tap","round":1,"playerId":"u1","username":"kas","reactionMs":199}`)

	require.Len(t, st.Results, 1)
	assert.Equal(t, 199, st.Results[0].ReactionMs)
}

func TestGameOver(t *testing.T) {
	t.Parallel()

	p := New()
	st := fold(t, p, p.InitialState(), `{"type":"gameOver","winnerId":"u2","scores":{"u1":2,"u2":3}}`)
	assert.Equal(t, phaseOver, st.Phase)
	assert.Equal(t, "u2", st.WinnerID)
	assert.Equal(t, 3, st.Scores["u2"])
}

func TestUnknownAndMalformedMessagesAreNoOps(t *testing.T) {
	t.Parallel()

	p := New()
	st := fold(t, p, p.InitialState(), `{"type":"roundStart","round":1}`)
	assert.Equal(t, st, fold(t, p, st, `{"type":"confetti"}`))
	assert.Equal(t, st, fold(t, p, st, `{not json`))
}

func TestApplyGameState(t *testing.T) {
	t.Parallel()

	p := New()
	next := p.ApplyGameState(p.InitialState(),
		json.RawMessage(`{"round":4,"phase":"fired","scores":{"u1":2},"names":{"u1":"kas"}}`))
	st, ok := next.(State)
	require.True(t, ok)
	assert.Equal(t, 4, st.Round)
	assert.Equal(t, phaseFired, st.Phase)
	assert.Equal(t, "kas", st.Names["u1"])
}

func TestSortedIDsRanksByScore(t *testing.T) {
	t.Parallel()

	ids := sortedIDs(map[string]int{"a": 1, "b": 3, "c": 3, "d": 0})
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids)
}

func TestEncodeTap(t *testing.T) {
	t.Parallel()

	msgType, payload := EncodeTap(142)
	assert.Equal(t, "tap", msgType)
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reactionMs":142}`, string(data))
}
