package persistence

// User is a room participant as stored inside the room document.
type User struct {
	ID   string `json:"id" bson:"id" firestore:"id"`
	Name string `json:"name" bson:"name" firestore:"name"`
}

// Room is the persisted room document. Field names are shared by every
// backend and must not change.
type Room struct {
	ID        string              `json:"id" bson:"id" firestore:"id"`
	Name      string              `json:"name" bson:"name" firestore:"name"`
	StartDate string              `json:"startDate" bson:"startDate" firestore:"startDate"`
	EndDate   string              `json:"endDate" bson:"endDate" firestore:"endDate"`
	CreatedBy string              `json:"createdBy" bson:"createdBy" firestore:"createdBy"`
	Users     []User              `json:"users" bson:"users" firestore:"users"`
	Schedules map[string][]string `json:"schedules" bson:"schedules" firestore:"schedules"`
}

// Normalize replaces nil collections with empty ones so documents never carry
// null users, schedules or slot lists.
func (r Room) Normalize() Room {
	if r.Users == nil {
		r.Users = []User{}
	}
	if r.Schedules == nil {
		r.Schedules = map[string][]string{}
	}
	for id, slots := range r.Schedules {
		if slots == nil {
			r.Schedules[id] = []string{}
		}
	}
	return r
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	out := r
	if r.Users != nil {
		out.Users = make([]User, len(r.Users))
		copy(out.Users, r.Users)
	}
	if r.Schedules != nil {
		out.Schedules = make(map[string][]string, len(r.Schedules))
		for id, slots := range r.Schedules {
			out.Schedules[id] = cloneStrings(slots)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
