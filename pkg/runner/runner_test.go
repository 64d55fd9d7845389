package runner

import (
	"context"
	"sync"
	"testing"

	"github.com/changelens/impact-engine/pkg/builder"
	"github.com/changelens/impact-engine/pkg/metrics"
	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/pubsub"
	"github.com/changelens/impact-engine/pkg/store"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	types  []string
}

func (p *recordingPublisher) Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error) {
	return nil, nil
}

func (p *recordingPublisher) Publish(topic, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testRecords() []model.FileFacts {
	return []model.FileFacts{
		{FilePath: "a.py", Imports: []model.ImportRef{{Name: "b"}}},
		{FilePath: "b.py"},
	}
}

func TestRunBuildsAndPublishes(t *testing.T) {
	st := store.New(5)
	pub := &recordingPublisher{}
	rnr := New(st, pub, builder.Options{Metrics: metrics.Options{Workers: 1}})

	res, err := rnr.Run(context.Background(), "repo", "main", testRecords())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Graph.Version != 1 {
		t.Errorf("version = %d, want 1", res.Graph.Version)
	}
	if len(res.Rejected) != 0 {
		t.Errorf("unexpected rejections: %v", res.Rejected)
	}

	stored, err := st.Get("repo", "main")
	if err != nil {
		t.Fatalf("snapshot not stored: %v", err)
	}
	if stored != res.Graph {
		t.Error("stored snapshot differs from run result")
	}

	// Progress events in phase order, then the publish notification.
	wantTypes := []string{"registering", "resolving", "metrics", "published", "published"}
	if len(pub.types) != len(wantTypes) {
		t.Fatalf("events = %v, want %v", pub.types, wantTypes)
	}
	for i, want := range wantTypes {
		if pub.types[i] != want {
			t.Errorf("event[%d] = %s, want %s", i, pub.types[i], want)
		}
	}
	if pub.topics[len(pub.topics)-1] != "graph_published" {
		t.Errorf("last topic = %s, want graph_published", pub.topics[len(pub.topics)-1])
	}
	for _, topic := range pub.topics[:len(pub.topics)-1] {
		if topic != "build_status" {
			t.Errorf("unexpected topic %s", topic)
		}
	}
}

func TestRunWithoutPublisher(t *testing.T) {
	st := store.New(5)
	rnr := New(st, nil, builder.Options{Metrics: metrics.Options{Workers: 1}})

	res, err := rnr.Run(context.Background(), "repo", "main", testRecords())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Graph.NodeCount() != 2 {
		t.Errorf("nodes = %d, want 2", res.Graph.NodeCount())
	}
}

func TestRunVersionsAccumulate(t *testing.T) {
	st := store.New(5)
	rnr := New(st, nil, builder.Options{Metrics: metrics.Options{Workers: 1}})

	rnr.Run(context.Background(), "repo", "main", testRecords())
	res, err := rnr.Run(context.Background(), "repo", "main", testRecords())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Graph.Version != 2 {
		t.Errorf("version = %d, want 2", res.Graph.Version)
	}
}
