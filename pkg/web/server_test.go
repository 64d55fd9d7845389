package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/changelens/impact-engine/pkg/builder"
	"github.com/changelens/impact-engine/pkg/metrics"
	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/risk"
	"github.com/changelens/impact-engine/pkg/runner"
	"github.com/changelens/impact-engine/pkg/score"
	"github.com/changelens/impact-engine/pkg/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	st := store.NewCached(store.New(5), 16, time.Minute)
	pub := NewPublisher()
	t.Cleanup(func() { pub.Close() })
	rnr := runner.New(st, pub, builder.Options{Metrics: metrics.Options{Workers: 1}})
	return NewServer(st, rnr, pub, Options{
		MaxDepth:      20,
		MaxPaths:      10,
		MaxLength:     12,
		QueryDeadline: time.Second,
		Weights:       score.DefaultWeights(),
		Thresholds:    risk.DefaultThresholds(),
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const submitBody = `{"records": [
	{"filePath": "a.py", "imports": [{"name": "b"}]},
	{"filePath": "b.py", "imports": [{"name": "c"}]},
	{"filePath": "c.py"}
]}`

func TestSubmitAndGetGraph(t *testing.T) {
	s := testServer(t)

	rec := do(t, s, "POST", "/api/graphs/repo/main", submitBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Version   int64 `json:"version"`
		NodeCount int   `json:"nodeCount"`
		EdgeCount int   `json:"edgeCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != 1 || resp.NodeCount != 3 || resp.EdgeCount != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}

	rec = do(t, s, "GET", "/api/graphs/repo/main", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body)
	}
	g, err := model.UnmarshalNodeLink(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("node-link decode: %v", err)
	}
	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("graph = %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}
}

func TestGetGraphVersionParameter(t *testing.T) {
	s := testServer(t)

	do(t, s, "POST", "/api/graphs/repo/main", submitBody)
	do(t, s, "POST", "/api/graphs/repo/main", `{"records": [{"filePath": "a.py"}]}`)

	rec := do(t, s, "GET", "/api/graphs/repo/main?version=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	g, err := model.UnmarshalNodeLink(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.Version != 1 || g.NodeCount() != 3 {
		t.Errorf("got v%d with %d nodes, want v1 with 3", g.Version, g.NodeCount())
	}

	if rec := do(t, s, "GET", "/api/graphs/repo/main?version=boom", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid version status = %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/graphs/repo/main?version=99", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown version status = %d", rec.Code)
	}
}

func TestGetGraphNotFound(t *testing.T) {
	s := testServer(t)

	rec := do(t, s, "GET", "/api/graphs/ghost/main", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp["error"] == "" {
		t.Errorf("expected JSON error body, got %s", rec.Body)
	}
}

func TestGraphStats(t *testing.T) {
	s := testServer(t)
	do(t, s, "POST", "/api/graphs/repo/main", submitBody)

	rec := do(t, s, "GET", "/api/graphs/repo/main/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var stats model.GraphStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.NodeCount != 3 || !stats.IsDAG || stats.ComponentCount != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestImpactEndpoint(t *testing.T) {
	s := testServer(t)
	do(t, s, "POST", "/api/graphs/repo/main", submitBody)

	rec := do(t, s, "POST", "/api/graphs/repo/main/impact", `{"changedIds": ["c.py"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Impacted        map[string]int `json:"impacted"`
		RiskLevel       string         `json:"riskLevel"`
		Recommendations []string       `json:"recommendations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Impacted["b.py"] != 1 || resp.Impacted["a.py"] != 2 {
		t.Errorf("impacted = %v", resp.Impacted)
	}
	if resp.RiskLevel == "" || len(resp.Recommendations) == 0 {
		t.Errorf("missing assessment: %+v", resp)
	}
}

func TestImpactErrors(t *testing.T) {
	s := testServer(t)
	do(t, s, "POST", "/api/graphs/repo/main", submitBody)

	if rec := do(t, s, "POST", "/api/graphs/repo/main/impact", `{"changedIds": ["ghost"]}`); rec.Code != http.StatusNotFound {
		t.Errorf("all-unknown status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/graphs/repo/main/impact", `{"changedIds": []}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty seed status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/graphs/repo/main/impact", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/graphs/ghost/main/impact", `{"changedIds": ["c.py"]}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing graph status = %d, want 404", rec.Code)
	}
}

func TestCriticalityEndpoint(t *testing.T) {
	s := testServer(t)
	do(t, s, "POST", "/api/graphs/repo/main", submitBody)

	rec := do(t, s, "GET", "/api/graphs/repo/main/criticality", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Nodes []struct {
			ID    string  `json:"id"`
			Score float64 `json:"score"`
			Band  string  `json:"band"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(resp.Nodes))
	}
	for i := 1; i < len(resp.Nodes); i++ {
		if resp.Nodes[i].Score > resp.Nodes[i-1].Score {
			t.Errorf("nodes not sorted by score: %+v", resp.Nodes)
		}
	}
	for _, n := range resp.Nodes {
		if n.Band == "" {
			t.Errorf("node %s missing band", n.ID)
		}
	}
}

func TestPathsEndpoint(t *testing.T) {
	s := testServer(t)
	do(t, s, "POST", "/api/graphs/repo/main", submitBody)

	rec := do(t, s, "GET", "/api/graphs/repo/main/paths?source=a.py&target=c.py", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Paths [][]string `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Paths) != 1 || len(resp.Paths[0]) != 3 {
		t.Errorf("paths = %v", resp.Paths)
	}

	if rec := do(t, s, "GET", "/api/graphs/repo/main/paths?source=a.py", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing target status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/graphs/repo/main/paths?source=ghost&target=c.py", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown source status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/graphs/repo/main/paths?source=a.py&target=c.py&maxPaths=boom", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid maxPaths status = %d, want 400", rec.Code)
	}
}
