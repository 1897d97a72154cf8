// Package models holds persisted entities shared by repositories and services.
package models

// Credential pairs a bot user and phone number with the encrypted secrets
// captured at login time. EncPassword and EncSession are cryptox.Box outputs;
// plaintext never reaches storage.
type Credential struct {
	UserID      int64
	Phone       string
	EncPassword string
	EncSession  string
}

// Names of the persistent stat counters.
const (
	CounterCodesSent = "codes_sent"
)
