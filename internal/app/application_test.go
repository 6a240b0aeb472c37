package app

import (
	"testing"

	"chatcam/internal/config"
)

func TestNewApplicationDefaults(t *testing.T) {
	application, err := NewApplication(nil)
	if err != nil {
		t.Fatalf("NewApplication(nil): %v", err)
	}
	if got := application.GetAddr(); got != "0.0.0.0:8080" {
		t.Errorf("GetAddr = %q, want default address", got)
	}
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1
	if _, err := NewApplication(cfg); err == nil {
		t.Error("NewApplication accepted an invalid configuration")
	}
}

func TestNewApplicationRedisBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Attachment.Backend = config.AttachmentBackendRedis

	// Construction must succeed without a live Redis; connections are lazy.
	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication with redis backend: %v", err)
	}
	if application.attachments == nil {
		t.Error("attachment store not wired")
	}
}
