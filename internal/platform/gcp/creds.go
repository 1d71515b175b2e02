package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions builds storage client options from a credentials file path or inline JSON.
// An empty value falls back to application default credentials.
func ClientOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
