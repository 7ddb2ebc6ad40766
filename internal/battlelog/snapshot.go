package battlelog

import "encoding/json"

// Snapshot is the slimmed battle stored on a wager, keyed by the wager's own
// tag_a/tag_b roles instead of the feed's team/opponent seats.
type Snapshot struct {
	BattleTime string         `json:"battleTime"`
	Type       string         `json:"type"`
	GameMode   *GameMode      `json:"gameMode"`
	TagACrowns int            `json:"tag_a_crowns"`
	TagBCrowns int            `json:"tag_b_crowns"`
	TagA       SnapshotPlayer `json:"tag_a"`
	TagB       SnapshotPlayer `json:"tag_b"`
}

type SnapshotPlayer struct {
	Tag              string       `json:"tag"`
	Name             string       `json:"name"`
	Crowns           *int         `json:"crowns"`
	StartingTrophies *int         `json:"startingTrophies"`
	TrophyChange     *int         `json:"trophyChange"`
	Clan             SnapshotClan `json:"clan"`
	Deck             []Card       `json:"deck"`
}

type SnapshotClan struct {
	Tag     *string `json:"tag"`
	Name    *string `json:"name"`
	BadgeID *int64  `json:"badgeId"`
}

// NewSnapshot maps the battle's two players onto tagA and tagB.
func NewSnapshot(b Battle, tagA, tagB string) Snapshot {
	var team, opp Player
	if len(b.Team) > 0 {
		team = b.Team[0]
	}
	if len(b.Opponent) > 0 {
		opp = b.Opponent[0]
	}
	a, bb := mustNormalize(tagA), mustNormalize(tagB)
	teamTag, oppTag := mustNormalize(team.TagValue()), mustNormalize(opp.TagValue())

	aPlayer := team
	if teamTag != a && oppTag == a {
		aPlayer = opp
	}
	bPlayer := opp
	if teamTag == bb {
		bPlayer = team
	}

	return Snapshot{
		BattleTime: b.BattleTime,
		Type:       b.Type,
		GameMode:   b.GameMode,
		TagACrowns: aPlayer.CrownCount(),
		TagBCrowns: bPlayer.CrownCount(),
		TagA:       snapshotPlayer(aPlayer),
		TagB:       snapshotPlayer(bPlayer),
	}
}

// Encode renders the snapshot for the battle_data column.
func (s Snapshot) Encode() (json.RawMessage, error) {
	return json.Marshal(s)
}

func snapshotPlayer(p Player) SnapshotPlayer {
	out := SnapshotPlayer{
		Tag:              mustNormalize(p.TagValue()),
		Name:             p.Name,
		Crowns:           p.Crowns,
		StartingTrophies: p.StartingTrophies,
		TrophyChange:     p.TrophyChange,
		Deck:             make([]Card, 0, len(p.Cards)),
	}
	if p.Clan != nil {
		out.Clan = SnapshotClan{Tag: &p.Clan.Tag, Name: &p.Clan.Name, BadgeID: p.Clan.BadgeID}
	}
	out.Deck = append(out.Deck, p.Cards...)
	return out
}
