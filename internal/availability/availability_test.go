package availability

import (
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestAggregate(t *testing.T) {
	t.Run("two user scenario", func(t *testing.T) {
		members := []Member{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}
		schedules := map[string][]string{
			"a": {"2024-01-01:09"},
			"b": {"2024-01-01:09", "2024-01-01:10"},
		}

		stats := Aggregate(members, schedules)

		nine := stats.Get("2024-01-01:09")
		if nine.Count != 2 || !reflect.DeepEqual(nine.Users, []string{"Alice", "Bob"}) {
			t.Fatalf("unexpected stat for 09: %+v", nine)
		}
		if got := Classify(nine.Count, len(members), false); got != LevelHigh {
			t.Fatalf("expected high for 09, got %s", got)
		}

		ten := stats.Get("2024-01-01:10")
		if ten.Count != 1 {
			t.Fatalf("expected count 1 for 10, got %d", ten.Count)
		}
		if got := Classify(ten.Count, len(members), false); got != LevelMediumLow {
			t.Fatalf("expected medium-low for 10, got %s", got)
		}

		other := stats.Get("2024-01-02:09")
		if other.Count != 0 || Classify(other.Count, len(members), false) != LevelEmpty {
			t.Fatalf("expected empty slot, got %+v", other)
		}
	})

	t.Run("skips schedules of unknown users", func(t *testing.T) {
		stats := Aggregate(
			[]Member{{ID: "a", Name: "Alice"}},
			map[string][]string{"a": {"2024-01-01:09"}, "ghost": {"2024-01-01:09", "2024-01-01:11"}},
		)
		if got := stats.Get("2024-01-01:09").Count; got != 1 {
			t.Fatalf("expected ghost entry to be ignored, got count %d", got)
		}
		if _, ok := stats["2024-01-01:11"]; ok {
			t.Fatalf("expected no stat for slot only selected by unknown user")
		}
	})

	t.Run("names follow member join order", func(t *testing.T) {
		members := []Member{{ID: "c", Name: "Carol"}, {ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}
		schedules := map[string][]string{
			"a": {"2024-01-01:09"},
			"b": {"2024-01-01:09"},
			"c": {"2024-01-01:09"},
		}
		got := Aggregate(members, schedules).Get("2024-01-01:09").Users
		if !reflect.DeepEqual(got, []string{"Carol", "Alice", "Bob"}) {
			t.Fatalf("unexpected order %v", got)
		}
	})

	t.Run("counts a repeated slot once per user", func(t *testing.T) {
		stats := Aggregate(
			[]Member{{ID: "a", Name: "Alice"}},
			map[string][]string{"a": {"2024-01-01:09", "2024-01-01:09"}},
		)
		if got := stats.Get("2024-01-01:09"); got.Count != 1 || len(got.Users) != 1 {
			t.Fatalf("expected single occurrence, got %+v", got)
		}
	})

	t.Run("tolerates missing data", func(t *testing.T) {
		if stats := Aggregate(nil, nil); len(stats) != 0 {
			t.Fatalf("expected empty stats, got %v", stats)
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		count, total int
		self         bool
		want         Level
	}{
		{0, 4, false, LevelEmpty},
		{1, 4, false, LevelLow},
		{1, 3, false, LevelMediumLow},
		{2, 4, false, LevelMediumLow},
		{2, 3, false, LevelMediumHigh},
		{3, 4, false, LevelMediumHigh},
		{4, 5, false, LevelHigh},
		{4, 4, false, LevelHigh},
		{1, 8, false, LevelLow},
		{3, 8, false, LevelMediumLow},
		{0, 0, false, LevelEmpty},
		{2, 0, false, LevelEmpty},
		{1, 4, true, LevelSelf},
		{4, 4, true, LevelSelf},
	}

	for _, tc := range tests {
		if got := Classify(tc.count, tc.total, tc.self); got != tc.want {
			t.Fatalf("Classify(%d, %d, %v) = %s, want %s", tc.count, tc.total, tc.self, got, tc.want)
		}
	}
}

func TestBuildGrid(t *testing.T) {
	start := civil.Date{Year: 2024, Month: time.January, Day: 1}
	end := civil.Date{Year: 2024, Month: time.January, Day: 2}
	members := []Member{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}
	schedules := map[string][]string{
		"a": {"2024-01-01:09"},
		"b": {"2024-01-01:09", "2024-01-01:10"},
	}

	grid := BuildGrid(start, end, members, schedules, "a")

	if grid.TotalUsers != 2 {
		t.Fatalf("expected 2 users, got %d", grid.TotalUsers)
	}
	if len(grid.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(grid.Days))
	}
	for _, day := range grid.Days {
		if len(day.Cells) != 24 {
			t.Fatalf("expected 24 cells for %v, got %d", day.Date, len(day.Cells))
		}
	}

	nine := grid.Days[0].Cells[9]
	if nine.SlotID != "2024-01-01:09" || nine.Level != LevelSelf || nine.Count != 2 {
		t.Fatalf("unexpected 09 cell: %+v", nine)
	}
	ten := grid.Days[0].Cells[10]
	if ten.Level != LevelMediumLow || !reflect.DeepEqual(ten.Users, []string{"Bob"}) {
		t.Fatalf("unexpected 10 cell: %+v", ten)
	}
	if cell := grid.Days[1].Cells[0]; cell.Level != LevelEmpty || cell.Count != 0 {
		t.Fatalf("unexpected empty cell: %+v", cell)
	}
	if grid.Days[0].Label != "1月1日 週一" {
		t.Fatalf("unexpected label %q", grid.Days[0].Label)
	}

	t.Run("viewer outside the room sees no self cells", func(t *testing.T) {
		grid := BuildGrid(start, end, members, schedules, "stranger")
		if got := grid.Days[0].Cells[9].Level; got != LevelHigh {
			t.Fatalf("expected high, got %s", got)
		}
	})
}

func TestSummarize(t *testing.T) {
	members := []Member{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}
	schedules := map[string][]string{"a": {"2024-01-01:09", "2024-01-01:10"}}

	got := Summarize(members, schedules, "b", "a")

	want := []Participant{
		{Member: members[0], SelectedCount: 2, Creator: true},
		{Member: members[1], SelectedCount: 0, Self: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected summary: %+v", got)
	}
}
