package transport

// SessionDocument is the record/replay wire format for one bench: one
// entry per alias, each holding the profile reference and a chronological
// log of {type, command, response?, timestamp}.
type SessionDocument map[string]*AliasLog

// AliasLog is one instrument's recorded session.
type AliasLog struct {
	Profile string      `yaml:"profile"`
	Log     []LogEntry  `yaml:"log"`
}

// LogEntry is one recorded transport call.
type LogEntry struct {
	Type      string  `yaml:"type"` // "write" | "query"
	Command   string  `yaml:"command"`
	Response  *string `yaml:"response,omitempty"`
	Timestamp float64 `yaml:"timestamp"`
}
