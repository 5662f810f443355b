package cli

import "os"

// Config holds CLI configuration
type Config struct {
	ServerURL string
	ChatAddr  string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("PARLEY_SERVER", "http://localhost:8080"),
		ChatAddr:  getEnvOrDefault("PARLEY_CHAT_ADDR", "localhost:1234"),
		Output:    "text",
		Verbose:   false,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
