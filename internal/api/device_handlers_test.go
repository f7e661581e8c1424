package api

import (
	"testing"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

func TestDeviceJSON(t *testing.T) {
	device := &models.Device{
		ID:          7,
		OwnerUserID: 1,
		Name:        "Pixel",
		Role:        models.RoleHost,
	}

	out := deviceJSON(device, true)
	if out["id"] != int64(7) || out["name"] != "Pixel" || out["type"] != models.RoleHost {
		t.Fatalf("unexpected device JSON: %v", out)
	}
	if out["is_online"] != true {
		t.Fatalf("is_online = %v, want true", out["is_online"])
	}
	if _, ok := out["last_seen"]; ok {
		t.Fatal("last_seen should be omitted when LastSeenAt is nil")
	}

	seenAt := time.Now()
	device.LastSeenAt = &seenAt
	out = deviceJSON(device, false)
	if out["last_seen"] != &seenAt {
		t.Fatalf("last_seen = %v, want %v", out["last_seen"], &seenAt)
	}
}
