// Package analytics collects search and index-build events from the search
// service, ships them over Kafka and aggregates them for reporting.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
)

type EventType string

const (
	EventSearch     EventType = "search"
	EventIndexBuild EventType = "index_build"
)

// Event is anything the Collector can ship.
type Event interface {
	kafkaEvent() kafka.Event
}

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms,omitempty"`
	Audience  string    `json:"audience"`
	Status    string    `json:"status"`
	ErrorKind string    `json:"error_kind,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

func (e SearchEvent) kafkaEvent() kafka.Event {
	e.Type = EventSearch
	return kafka.Event{Key: e.Query, Type: string(EventSearch), Value: e}
}

type IndexBuildEvent struct {
	Type        EventType `json:"type"`
	Audience    string    `json:"audience"`
	Pages       int       `json:"pages"`
	Indexed     int       `json:"indexed"`
	Unreadable  int       `json:"unreadable"`
	Segments    int       `json:"segments"`
	Terms       int       `json:"terms"`
	Fingerprint string    `json:"fingerprint"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e IndexBuildEvent) kafkaEvent() kafka.Event {
	e.Type = EventIndexBuild
	return kafka.Event{Key: e.Audience, Type: string(EventIndexBuild), Value: e}
}
