package types

// Link is the state reported for a transport link.
type Link string

const (
	LinkIdle     Link = "idle"
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
	LinkError    Link = "error"
)

// LinkState is published retained on link/<name>/state.
type LinkState struct {
	Level  Link   `json:"level"`
	Status string `json:"status"` // short machine string, e.g. "link_established"
	Error  string `json:"error,omitempty"`
	TSms   int64  `json:"ts_ms"`
}

// HALState is published retained on hal/state.
type HALState struct {
	Board  string `json:"board"`
	Level  Link   `json:"level"`
	Status string `json:"status"`
	TSms   int64  `json:"ts_ms"`
}
