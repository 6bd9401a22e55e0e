package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/maceff/macf/internal/paths"
	"github.com/maceff/macf/internal/search"
)

// recommendationContext queries the Search Service for query, preferring
// the running daemon and falling back to an in-process retriever only if
// the socket can't be reached within search.ConnectTimeout (spec §4.H).
// Returns "" on any error or a too-short query, since a missing policy
// recommendation is an acceptable degradation on the user_prompt_submit
// hot path — an unresponsive one is not.
func recommendationContext(rt *runtime, query string) string {
	if len(query) < search.MinQueryLen {
		return ""
	}

	start := time.Now()
	resp, err := search.Recommend(search.SocketPath(rt.agentHome), search.Request{
		Op:        "recommend",
		Query:     query,
		Limit:     3,
		Namespace: "policies",
	}, &lazyFallbackRetriever{})
	rt.metrics.ObserveSearchLatency(time.Since(start).Seconds())
	if err != nil {
		return ""
	}
	rt.metrics.RecordSearchQuery(searchPath(resp.Retriever))

	if len(resp.Results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant policy sections:\n")
	for _, hit := range resp.Results {
		if hit.Section != "" {
			fmt.Fprintf(&b, "- %s: %s\n", hit.Policy, hit.Section)
		} else {
			fmt.Fprintf(&b, "- %s\n", hit.Policy)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// lazyFallbackRetriever defers loading and indexing the policy corpus
// until Search is actually called, so a reachable daemon never pays the
// cost of building an unused in-process index on the 50ms hot path.
type lazyFallbackRetriever struct {
	built    bool
	inner    search.Retriever
	buildErr error
}

func (l *lazyFallbackRetriever) Build([]search.Document) error { return nil }

func (l *lazyFallbackRetriever) Search(query string, limit int) ([]search.Hit, error) {
	if !l.built {
		l.built = true
		l.inner, l.buildErr = buildFallbackRetriever()
	}
	if l.buildErr != nil {
		return nil, l.buildErr
	}
	return l.inner.Search(query, limit)
}

func (l *lazyFallbackRetriever) Name() string { return "hybrid_lazy" }

func buildFallbackRetriever() (search.Retriever, error) {
	frameworkRoot, err := paths.FrameworkRoot()
	if err != nil {
		return nil, err
	}
	docs, err := loadPolicyDocs(frameworkRoot)
	if err != nil {
		return nil, err
	}
	r := search.NewHybridRetriever(search.NewHashEmbedder(128, 3), search.DefaultWeight)
	if err := r.Build(docs); err != nil {
		return nil, err
	}
	return r, nil
}
