package cache

import "time"

// Presets are plain Config values for the distinct usage domains of the
// application. They are data, not behavior: callers construct their own
// engine from a preset, so tests get isolated instances instead of shared
// global state.
var (
	// UIStatePreset suits short-lived view state.
	UIStatePreset = Config{TTL: 5 * time.Minute, MaxSize: 1 << 20, Strategy: LRU}

	// APIResponsePreset suits backend query responses.
	APIResponsePreset = Config{TTL: 30 * time.Minute, MaxSize: 5 << 20, Strategy: LRU}

	// FilePayloadPreset suits large file payloads, where frequency predicts
	// reuse better than recency.
	FilePayloadPreset = Config{TTL: 24 * time.Hour, MaxSize: 20 << 20, Strategy: LFU}

	// PreferencesPreset suits long-lived, rarely-churning preference data.
	PreferencesPreset = Config{TTL: 7 * 24 * time.Hour, MaxSize: 512 << 10, Strategy: FIFO}
)
