package models

// Identity is the authenticated caller as seen by the core services.
type Identity struct {
	UserID      string
	DisplayName string
	// ClientID identifies the installation; suspensions are keyed by it.
	ClientID string
	Admin    bool
}

// SuspensionKey returns the key suspensions are stored under.
func (i Identity) SuspensionKey() string {
	if i.ClientID != "" {
		return i.ClientID
	}
	return i.UserID
}
