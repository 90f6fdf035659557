package domain

import "time"

// ConnState labels where the published book came from. It is owned and
// transitioned exclusively by the connection supervisor; the book and the
// publish throttle only ever see it as a tag on outgoing updates.
type ConnState string

const (
	StateConnecting        ConnState = "Connecting"
	StateConnected         ConnState = "Connected"
	StateReconnecting      ConnState = "Reconnecting"
	StateDisconnected      ConnState = "Disconnected"
	StateFallbackRest      ConnState = "FallbackRest"
	StateFallbackCache     ConnState = "FallbackCache"
	StateFallbackSynthetic ConnState = "FallbackSynthetic"
)

// PerfStats are the publish-side performance counters delivered with every
// update.
type PerfStats struct {
	Mutations        int64         `json:"mutations"`
	Emissions        int64         `json:"emissions"`
	EmissionsPerSec  float64       `json:"emissionsPerSec"`
	MeanSnapshotTime time.Duration `json:"meanSnapshotTime"`
}

// FeedUpdate is the unit pushed to consumers at the throttled rate. After
// the first successful snapshot the Book is never nil: it is the live book,
// the cached one, or a synthetic one, with State and Live telling the truth
// about which.
type FeedUpdate struct {
	Book  *BookSnapshot `json:"book"`
	State ConnState     `json:"connectionState"`
	Live  bool          `json:"live"`
	Perf  PerfStats     `json:"performanceMetrics"`
}
