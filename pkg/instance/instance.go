package instance

import "os"

const fallbackID = "local"

// GetID names this process in logs and lock owners. WARDROBE_INSTANCE_ID
// wins, then the platform dyno name, then the hostname.
func GetID() string {
	for _, key := range []string{"WARDROBE_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
