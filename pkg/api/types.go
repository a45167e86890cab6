package api

// StatusResponse is the payload of GET /v1/status.
type StatusResponse struct {
	State          string     `json:"state"`
	SessionID      string     `json:"session_id,omitempty"`
	Elapsed        string     `json:"elapsed"`
	ElapsedMs      int64      `json:"elapsed_ms"`
	Status         string     `json:"status"`
	StatusSeverity string     `json:"status_severity"`
	ProbeRunning   bool       `json:"probe_running"`
	LastProbe      *ProbeView `json:"last_probe,omitempty"`
	GeneratedAt    string     `json:"generated_at"`
}

// ProbeView is the latest progress or outcome of the probe.
type ProbeView struct {
	Status           string `json:"status"`
	Kind             string `json:"kind,omitempty"`
	Reason           string `json:"reason,omitempty"`
	BytesTransferred int64  `json:"bytes_transferred"`
	At               string `json:"at,omitempty"`
	Final            bool   `json:"final"`
}

// SessionView is one journal entry in GET /v1/sessions.
type SessionView struct {
	ID               string `json:"id"`
	StartedAt        string `json:"started_at"`
	EndedAt          string `json:"ended_at,omitempty"`
	Outcome          string `json:"outcome"`
	Kind             string `json:"kind,omitempty"`
	Reason           string `json:"reason,omitempty"`
	BytesTransferred int64  `json:"bytes_transferred"`
}

// ActionResponse is returned by POST /v1/acquire and /v1/release.
type ActionResponse struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}
