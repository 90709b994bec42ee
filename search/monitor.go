package search

import "github.com/poiesic/maintel/core"

// Monitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps during a query.
type Monitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterVectorSearch(matches []*core.SimilarityMatch)
	Finish(results []*core.SimilarityMatch)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                 {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)                {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.SimilarityMatch)    {}
func (n *noopMonitor) Finish(_ []*core.SimilarityMatch)               {}
