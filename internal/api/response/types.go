// Package response holds the status API's response types and writer.
package response

import "time"

// Health is the health check payload
type Health struct {
	Status string `json:"status"`
}

// Status reports who is in the chat right now and how full the server is.
type Status struct {
	// Online lists authenticated display names, sorted.
	Online      []string `json:"online"`
	OnlineCount int      `json:"online_count"`

	// ConnectedCount includes sessions still in the login flow.
	ConnectedCount int `json:"connected_count"`

	MaxSessions int       `json:"max_sessions"`
	ServerTime  time.Time `json:"server_time"`
}
