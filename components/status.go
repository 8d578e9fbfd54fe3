package components

// Status is a particle's lifecycle status.
type Status uint8

const (
	StatusInitial Status = iota
	StatusActive
	StatusMissingData
	StatusStranded
	StatusEvaporated
	StatusDispersed
)

// StatusNames returns the names of all statuses.
// The order matches the Status constants.
func StatusNames() []string {
	return []string{"initial", "active", "missing_data", "stranded", "evaporated", "dispersed"}
}

// StatusCount returns the number of statuses.
func StatusCount() int {
	return len(StatusNames())
}

func (s Status) String() string {
	names := StatusNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// ParseStatus returns the status with the given name.
func ParseStatus(name string) (Status, bool) {
	for i, n := range StatusNames() {
		if n == name {
			return Status(i), true
		}
	}
	return 0, false
}

// Terminal reports whether particles in this status never move again.
func (s Status) Terminal() bool {
	switch s {
	case StatusStranded, StatusEvaporated, StatusDispersed:
		return true
	}
	return false
}

// Color returns the plotting colour conventionally used for the status.
func (s Status) Color() string {
	switch s {
	case StatusInitial:
		return "green"
	case StatusActive:
		return "blue"
	case StatusMissingData:
		return "gray"
	case StatusStranded:
		return "red"
	case StatusEvaporated:
		return "yellow"
	case StatusDispersed:
		return "magenta"
	}
	return "black"
}
