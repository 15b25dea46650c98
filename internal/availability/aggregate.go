// Package availability derives per-slot statistics and heat levels from the
// schedules of a room's members.
//
// Everything here is pure and recomputed on each call; callers pass the room
// data they already hold and never receive an error.
package availability

// Member is a room participant as seen by the aggregator.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SlotStat summarises one slot across all resolved members.
type SlotStat struct {
	SlotID string   `json:"slotId"`
	Count  int      `json:"count"`
	Users  []string `json:"users"`
}

// Stats maps slot ids to their statistics. Slots nobody selected are absent.
type Stats map[string]SlotStat

// Get returns the statistic for slotID, or a zero-count statistic.
func (s Stats) Get(slotID string) SlotStat {
	if stat, ok := s[slotID]; ok {
		return stat
	}
	return SlotStat{SlotID: slotID}
}

// Aggregate counts, for every slot, the members who selected it.
//
// Members are visited in join order and each member's slots in list order, so
// the names of a slot follow that encounter order. Schedule entries whose key
// does not belong to a member are ignored. A member listing the same slot twice
// is counted once.
func Aggregate(members []Member, schedules map[string][]string) Stats {
	stats := make(Stats)
	for _, member := range members {
		slots, ok := schedules[member.ID]
		if !ok {
			continue
		}
		seen := make(map[string]struct{}, len(slots))
		for _, slotID := range slots {
			if _, dup := seen[slotID]; dup {
				continue
			}
			seen[slotID] = struct{}{}

			stat := stats[slotID]
			stat.SlotID = slotID
			stat.Count++
			stat.Users = append(stat.Users, member.Name)
			stats[slotID] = stat
		}
	}
	return stats
}
