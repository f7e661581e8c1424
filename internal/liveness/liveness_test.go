package liveness

import (
	"context"
	"testing"

	"github.com/alaska-icy-giant/simbridge/internal/models"
	"github.com/alaska-icy-giant/simbridge/internal/registry"
)

func newTestSession(deviceID int64, role models.DeviceRole) *registry.Session {
	return registry.NewSession(deviceID, role, nil, func() {})
}

func TestPairedPeerIDs_UnknownRoleReturnsEmpty(t *testing.T) {
	l := New(registry.New(), nil, 0, nil)
	session := newTestSession(1, models.DeviceRole("unknown"))

	ids, err := l.pairedPeerIDs(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no peers for an unknown role, got %v", ids)
	}
}
