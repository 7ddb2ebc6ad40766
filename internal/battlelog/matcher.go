package battlelog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Window bounds the battles that may settle a wager. Both ends are inclusive.
type Window struct {
	Start time.Time
	End   *time.Time
}

func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Result is the battle chosen for a wager.
type Result struct {
	BattleTime    time.Time
	BattleTimeRaw string
	Fingerprint   string
	WinnerTag     *string
	IsTie         bool
	Battle        Battle
}

type indexed struct {
	time   time.Time
	battle Battle
}

// Match returns the earliest in-window one-on-one battle between tagA and tagB
// present in both histories, or nil when there is none.
func Match(historyA, historyB []Battle, tagA, tagB string, window Window) (*Result, error) {
	a, err := NormalizeTag(tagA)
	if err != nil {
		return nil, err
	}
	b, err := NormalizeTag(tagB)
	if err != nil {
		return nil, err
	}

	byFPA := index(historyA, a, b, window)
	byFPB := index(historyB, a, b, window)

	var (
		chosenFP string
		chosen   indexed
		found    bool
	)
	for fp, entry := range byFPA {
		if _, ok := byFPB[fp]; !ok {
			continue
		}
		if !found || entry.time.Before(chosen.time) || (entry.time.Equal(chosen.time) && fp < chosenFP) {
			chosenFP, chosen, found = fp, entry, true
		}
	}
	if !found {
		return nil, nil
	}

	team, opp := chosen.battle.Team[0], chosen.battle.Opponent[0]
	teamCrowns, oppCrowns := team.CrownCount(), opp.CrownCount()

	res := &Result{
		BattleTime:    chosen.time,
		BattleTimeRaw: chosen.battle.BattleTime,
		Fingerprint:   chosenFP,
		IsTie:         teamCrowns == oppCrowns,
		Battle:        chosen.battle,
	}
	switch {
	case teamCrowns > oppCrowns:
		w := mustNormalize(team.TagValue())
		res.WinnerTag = &w
	case oppCrowns > teamCrowns:
		w := mustNormalize(opp.TagValue())
		res.WinnerTag = &w
	}
	return res, nil
}

func index(history []Battle, tagA, tagB string, window Window) map[string]indexed {
	out := make(map[string]indexed)
	for _, battle := range history {
		if !isHeadToHead(battle, tagA, tagB) {
			continue
		}
		t, ok := ParseBattleTime(battle.BattleTime)
		if !ok || !window.Contains(t) {
			continue
		}
		fp := Fingerprint(battle)
		// battle logs are usually newest first, keep the earliest copy
		if existing, ok := out[fp]; !ok || t.Before(existing.time) {
			out[fp] = indexed{time: t, battle: battle}
		}
	}
	return out
}

func isHeadToHead(b Battle, tagA, tagB string) bool {
	if len(b.Team) != 1 || len(b.Opponent) != 1 {
		return false
	}
	if b.Team[0].Tag == nil || b.Opponent[0].Tag == nil {
		return false
	}
	team, err := NormalizeTag(*b.Team[0].Tag)
	if err != nil {
		return false
	}
	opp, err := NormalizeTag(*b.Opponent[0].Tag)
	if err != nil {
		return false
	}
	return (team == tagA && opp == tagB) || (team == tagB && opp == tagA)
}

type fingerprintPlayer struct {
	Tag    string `json:"tag"`
	Crowns int    `json:"crowns"`
}

type fingerprintPayload struct {
	BattleTime string              `json:"battle_time"`
	Type       string              `json:"type"`
	GameModeID *int64              `json:"game_mode_id"`
	Players    []fingerprintPlayer `json:"players"`
}

// Fingerprint hashes the seat-independent identity of a battle.
func Fingerprint(b Battle) string {
	players := make([]fingerprintPlayer, 0, 2)
	for _, side := range [][]Player{b.Team, b.Opponent} {
		if len(side) == 0 {
			continue
		}
		players = append(players, fingerprintPlayer{
			Tag:    mustNormalize(side[0].TagValue()),
			Crowns: side[0].CrownCount(),
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Tag < players[j].Tag })

	payload := fingerprintPayload{
		BattleTime: b.BattleTime,
		Type:       b.Type,
		Players:    players,
	}
	if b.GameMode != nil {
		payload.GameModeID = b.GameMode.ID
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)

	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:])
}
