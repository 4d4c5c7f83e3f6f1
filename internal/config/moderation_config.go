package config

import "time"

const (
	// Suspension
	ToxicitySuspension = 24 * time.Hour

	// Banners
	PrivacyWarningTTL = 5 * time.Second

	// Text generation
	DefaultRewriteTimeout = 5 * time.Second

	// Reports
	ReportLogSize = 20

	// Community board
	EchoPageSize = 50
)

// Moods accepted by the community board.
var Moods = []string{"calm", "sad", "anxious", "angry", "hopeful", "lonely"}

// DefaultDisplayName is used when a user never set a name.
const DefaultDisplayName = "Anonymous"
