package game

import "sort"

// Metadata はプレゼンスに載るプレイヤーの静的情報です。
type Metadata struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Member はトランスポートのプレゼンススナップショットの1要素です。
type Member struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

// PresenceDiff は SyncPresence による追加・削除の結果です。
type PresenceDiff struct {
	Added   []string
	Removed []string
}

func (d PresenceDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// SyncPresence はスナップショットとの差分だけを Players に反映します。
// 追跡済みのプレイヤーは位置・体力・ストローク等の動的状態を保持し、名前と色のみ更新する。
// 新規メンバーはランダムな位置に初期体力で追加される。
func SyncPresence(s *State, members []Member, rng Rand) PresenceDiff {
	var diff PresenceDiff
	present := make(map[string]struct{}, len(members))

	for _, m := range members {
		if m.ID == "" {
			continue
		}
		present[m.ID] = struct{}{}
		if p, ok := s.Players[m.ID]; ok {
			if m.Metadata.Name != "" {
				p.Name = m.Metadata.Name
			}
			if m.Metadata.Color != "" {
				p.Color = m.Metadata.Color
			}
			continue
		}
		s.Players[m.ID] = NewPlayer(m.ID, m.Metadata.Name, m.Metadata.Color, RandomArenaPosition(rng, 0))
		diff.Added = append(diff.Added, m.ID)
	}

	for id := range s.Players {
		if _, ok := present[id]; !ok {
			delete(s.Players, id)
			diff.Removed = append(diff.Removed, id)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}

// SpawnLeader はパワーアップ生成を担当するピアのIDを返します（最小ID）。
func SpawnLeader(s *State) string {
	leader := ""
	for id := range s.Players {
		if leader == "" || id < leader {
			leader = id
		}
	}
	return leader
}
