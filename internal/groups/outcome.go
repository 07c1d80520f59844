package groups

// Outcome tells the caller what an operation did when that is not an error.
type Outcome int

const (
	// Applied means the requested change was written.
	Applied Outcome = iota
	// NoAction means the local state already matched the request.
	NoAction
	// NotStored means a referenced user is missing locally and nothing was
	// written; resync participants and retry.
	NotStored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NoAction:
		return "no action"
	case NotStored:
		return "not stored"
	default:
		return "unknown"
	}
}
