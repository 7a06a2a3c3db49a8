package api

import (
	"sync/atomic"
	"time"
)

// Stats counts request outcomes since startup
type Stats struct {
	started time.Time

	uploadsReceived  atomic.Int64
	uploadsForwarded atomic.Int64
	uploadsRejected  atomic.Int64
	upstreamFailures atomic.Int64
	internalFailures atomic.Int64
	typeMismatches   atomic.Int64
	filesProxied     atomic.Int64
	proxyFailures    atomic.Int64
}

// StatsSnapshot is the serialized form of Stats
type StatsSnapshot struct {
	UptimeSeconds    int64 `json:"uptimeSeconds" msgpack:"uptimeSeconds"`
	UploadsReceived  int64 `json:"uploadsReceived" msgpack:"uploadsReceived"`
	UploadsForwarded int64 `json:"uploadsForwarded" msgpack:"uploadsForwarded"`
	UploadsRejected  int64 `json:"uploadsRejected" msgpack:"uploadsRejected"`
	UpstreamFailures int64 `json:"upstreamFailures" msgpack:"upstreamFailures"`
	InternalFailures int64 `json:"internalFailures" msgpack:"internalFailures"`
	TypeMismatches   int64 `json:"typeMismatches" msgpack:"typeMismatches"`
	FilesProxied     int64 `json:"filesProxied" msgpack:"filesProxied"`
	ProxyFailures    int64 `json:"proxyFailures" msgpack:"proxyFailures"`
	StagedFiles      int   `json:"stagedFiles" msgpack:"stagedFiles"`
}

// NewStats starts the uptime clock
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// Snapshot copies the counters
func (s *Stats) Snapshot(staged int) StatsSnapshot {
	return StatsSnapshot{
		UptimeSeconds:    int64(time.Since(s.started).Seconds()),
		UploadsReceived:  s.uploadsReceived.Load(),
		UploadsForwarded: s.uploadsForwarded.Load(),
		UploadsRejected:  s.uploadsRejected.Load(),
		UpstreamFailures: s.upstreamFailures.Load(),
		InternalFailures: s.internalFailures.Load(),
		TypeMismatches:   s.typeMismatches.Load(),
		FilesProxied:     s.filesProxied.Load(),
		ProxyFailures:    s.proxyFailures.Load(),
		StagedFiles:      staged,
	}
}
