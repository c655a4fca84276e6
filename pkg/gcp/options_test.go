package gcp

import (
	"testing"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
)

func TestClientOptionsPrefersInlineJSON(t *testing.T) {
	opts := ClientOptions(config.GCPConfig{
		CredentialsJSON:        `{"type":"service_account"}`,
		ApplicationCredentials: "/etc/gcp/creds.json",
	})
	if len(opts) != 1 {
		t.Fatalf("expected a single option, got %d", len(opts))
	}
}

func TestClientOptionsFallsBackToDefaults(t *testing.T) {
	if opts := ClientOptions(config.GCPConfig{CredentialsJSON: "  "}); opts != nil {
		t.Fatalf("expected no options, got %d", len(opts))
	}
}
