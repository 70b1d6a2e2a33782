package model

// Mode identifies the inverter operating mode for one planning slot.
type Mode int

const (
	// ModeHomeI is the default self-consumption mode: solar covers the load,
	// surplus charges the battery and deficits discharge it.
	ModeHomeI Mode = iota
	// ModeHomeII preserves the battery during the day: daytime deficits are
	// met from the grid instead of the battery.
	ModeHomeII
	// ModeHomeIII routes all solar to the battery while the load runs from
	// the grid.
	ModeHomeIII
	// ModeHomeUPS charges the battery from the grid while the load runs from
	// the grid.
	ModeHomeUPS
)

// Modes lists all modes in scoring tie-break order.
var Modes = []Mode{ModeHomeI, ModeHomeII, ModeHomeIII, ModeHomeUPS}

func (m Mode) String() string {
	switch m {
	case ModeHomeI:
		return "home_1"
	case ModeHomeII:
		return "home_2"
	case ModeHomeIII:
		return "home_3"
	case ModeHomeUPS:
		return "home_ups"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the four known modes.
func (m Mode) Valid() bool {
	return m >= ModeHomeI && m <= ModeHomeUPS
}

// ParseMode converts a string to a Mode. Unknown values map to ModeHomeI so
// that a corrupted input row never aborts planning.
func ParseMode(s string) Mode {
	switch s {
	case "home_1", "HOME I":
		return ModeHomeI
	case "home_2", "HOME II":
		return ModeHomeII
	case "home_3", "HOME III":
		return ModeHomeIII
	case "home_ups", "HOME UPS":
		return ModeHomeUPS
	default:
		return ModeHomeI
	}
}
