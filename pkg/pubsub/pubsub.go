package pubsub

import (
	"context"
	"encoding/json"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "build_status", "graph_published")
	Type    string          `json:"type"`    // Event type (e.g., "registering", "resolving", "metrics", "published")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// BuildStatus represents the state of an in-flight graph build
type BuildStatus struct {
	RepoID  string `json:"repo_id"`
	Branch  string `json:"branch"`
	State   string `json:"state"`   // registering, resolving, metrics, published, error
	Message string `json:"message"` // Human-readable status message
	Step    int    `json:"step"`    // Current step number (1-based)
	Total   int    `json:"total"`   // Total number of steps
}

// GraphPublished announces a newly committed graph snapshot
type GraphPublished struct {
	RepoID      string `json:"repo_id"`
	Branch      string `json:"branch"`
	Version     int64  `json:"version"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
	Approximate bool   `json:"approximate"`
}
