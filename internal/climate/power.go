package climate

// PowerState approximates the physical on/off state of a heater that exposes
// no direct power API, classified from its power-draw reading.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerOff
	PowerOn
)

func (p PowerState) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// ClassifyPower maps a power reading to an inferred physical state.
// ok=false (sensor missing, stale or unavailable) yields PowerUnknown;
// readings at or above the threshold count as on. Pure classification,
// never issues commands.
func ClassifyPower(reading float64, ok bool, threshold float64) PowerState {
	if !ok {
		return PowerUnknown
	}
	if reading >= threshold {
		return PowerOn
	}
	return PowerOff
}
