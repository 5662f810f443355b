package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case StatusResult:
		o.printStatusResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type (matches API)
type HealthResult struct {
	Status string `json:"status"`
}

// StatusResult response type
type StatusResult struct {
	Online         []string  `json:"online"`
	OnlineCount    int       `json:"online_count"`
	ConnectedCount int       `json:"connected_count"`
	MaxSessions    int       `json:"max_sessions"`
	ServerTime     time.Time `json:"server_time"`
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}

func (o *Output) printStatusResult(s StatusResult) {
	fmt.Printf("Online (%d/%d): %s\n", s.OnlineCount, s.MaxSessions, strings.Join(s.Online, ", "))
	if s.ConnectedCount > s.OnlineCount {
		fmt.Printf("Logging in: %d\n", s.ConnectedCount-s.OnlineCount)
	}
	fmt.Printf("Server time: %s\n", s.ServerTime.Format(time.RFC3339))
}
