package ticketstatus

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

// Terminal reports whether the status removes a ticket from the active set.
func (s Status) Terminal() bool {
	return s.Name == Statuses.Done.Name
}

type Enum struct {
	New        Status
	InProgress Status
	Done       Status
}

var Statuses = Enum{
	New:        Status{Name: "new"},
	InProgress: Status{Name: "in_progress"},
	Done:       Status{Name: "done"},
}

var All = []Status{
	Statuses.New,
	Statuses.InProgress,
	Statuses.Done,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
