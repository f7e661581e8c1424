// Package models defines the shared data types for the relay: User, Device,
// PairingCode, Pairing, MessageLog, and PendingCommand. Types carry JSON tags
// for API serialization and match the PostgreSQL schema in
// internal/database/migrations exactly.
package models

import "time"

// DeviceRole distinguishes the two kinds of paired device. Immutable once a
// Device is created.
type DeviceRole string

const (
	RoleHost   DeviceRole = "host"
	RoleClient DeviceRole = "client"
)

// MessageKind tags a relayed MessageLog row by the wire message type that
// produced it.
type MessageKind string

const (
	KindCommand MessageKind = "command"
	KindEvent   MessageKind = "event"
	KindWebRTC  MessageKind = "webrtc"
	KindPing    MessageKind = "ping"
	KindUnknown MessageKind = "unknown"
)

// User is an account. At least one of PasswordHash or FederatedID is set;
// Username is unique; FederatedID is unique when set.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  *string   `json:"display_name,omitempty"`
	PasswordHash *string   `json:"-"`
	Email        *string   `json:"-"`
	FederatedID  *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Device belongs to exactly one User and has an immutable Role. Liveness is
// never stored here — it's computed from the Session Registry.
type Device struct {
	ID          int64      `json:"id"`
	OwnerUserID int64      `json:"owner_user_id"`
	Name        string     `json:"name"`
	Role        DeviceRole `json:"type"`
	Platform    *string    `json:"platform,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PairingCode is a short-lived 6-digit secret authorizing creation of a
// Pairing for one host device.
type PairingCode struct {
	ID           int64     `json:"id"`
	OwnerUserID  int64     `json:"owner_user_id"`
	HostDeviceID int64     `json:"host_device_id"`
	Code         string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Used         bool      `json:"used"`
	CreatedAt    time.Time `json:"created_at"`
}

// Pairing links one host device and one client device owned by the same
// user. (HostDeviceID, ClientDeviceID) is unique.
type Pairing struct {
	ID             int64     `json:"id"`
	HostDeviceID   int64     `json:"host_device_id"`
	ClientDeviceID int64     `json:"client_device_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageLog is an append-only audit row for every message the Relay Engine
// handled, whether delivered live or queued.
type MessageLog struct {
	ID           int64       `json:"id"`
	FromDeviceID int64       `json:"from_device_id"`
	ToDeviceID   int64       `json:"to_device_id"`
	MsgKind      MessageKind `json:"msg_kind"`
	Payload      string      `json:"payload"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PendingCommand is a command addressed to a disconnected host, persisted
// for delivery on reconnect. Delivered in ascending CreatedAt order.
type PendingCommand struct {
	ID           int64     `json:"id"`
	HostDeviceID int64     `json:"host_device_id"`
	FromDeviceID int64     `json:"from_device_id"`
	Payload      string    `json:"payload"`
	Delivered    bool      `json:"delivered"`
	CreatedAt    time.Time `json:"created_at"`
}
