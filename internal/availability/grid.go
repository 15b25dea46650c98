package availability

import (
	"cloud.google.com/go/civil"

	"github.com/example/meetsync/internal/slot"
)

// Cell is one hour of one day in the grid.
type Cell struct {
	SlotID string   `json:"slotId"`
	Hour   int      `json:"hour"`
	Count  int      `json:"count"`
	Users  []string `json:"users"`
	Level  Level    `json:"level"`
}

// Day is one grid column.
type Day struct {
	Date  civil.Date `json:"date"`
	Label string     `json:"label"`
	Cells []Cell     `json:"cells"`
}

// Grid is the availability view of a room for one viewer.
type Grid struct {
	TotalUsers int   `json:"totalUsers"`
	Days       []Day `json:"days"`
}

// Participant is a member together with their selection summary.
type Participant struct {
	Member
	SelectedCount int  `json:"selectedCount"`
	Self          bool `json:"self"`
	Creator       bool `json:"creator"`
}

// BuildGrid lays out every hourly slot between start and end inclusive and
// classifies it from viewerID's point of view. viewerID may be empty.
func BuildGrid(start, end civil.Date, members []Member, schedules map[string][]string, viewerID string) Grid {
	stats := Aggregate(members, schedules)
	mine := selectedBy(members, schedules, viewerID)

	days := slot.DateRange(start, end)
	grid := Grid{TotalUsers: len(members), Days: make([]Day, 0, len(days))}
	for _, d := range days {
		column := Day{Date: d, Label: slot.DisplayDate(d), Cells: make([]Cell, 0, slot.HoursPerDay)}
		for _, hour := range slot.Hours() {
			id := slot.ID(d, hour)
			stat := stats.Get(id)
			_, self := mine[id]
			column.Cells = append(column.Cells, Cell{
				SlotID: id,
				Hour:   hour,
				Count:  stat.Count,
				Users:  stat.Users,
				Level:  Classify(stat.Count, len(members), self),
			})
		}
		grid.Days = append(grid.Days, column)
	}
	return grid
}

// Summarize reports each member's number of selected slots in join order.
func Summarize(members []Member, schedules map[string][]string, viewerID, createdBy string) []Participant {
	out := make([]Participant, 0, len(members))
	for _, m := range members {
		out = append(out, Participant{
			Member:        m,
			SelectedCount: len(schedules[m.ID]),
			Self:          viewerID != "" && m.ID == viewerID,
			Creator:       m.ID == createdBy,
		})
	}
	return out
}

func selectedBy(members []Member, schedules map[string][]string, viewerID string) map[string]struct{} {
	if viewerID == "" {
		return nil
	}
	for _, m := range members {
		if m.ID != viewerID {
			continue
		}
		set := make(map[string]struct{}, len(schedules[m.ID]))
		for _, id := range schedules[m.ID] {
			set[id] = struct{}{}
		}
		return set
	}
	return nil
}
