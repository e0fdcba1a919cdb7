package notes

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
)

// Hit is one answered section matched by a query.
type Hit struct {
	Question string
	Answer   string
	Score    float64
}

type document struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Index is an in-memory full-text index over answered research sections.
// Answers are added as they land; synthesis queries it for the sections most
// relevant to the topic.
type Index struct {
	mu   sync.RWMutex
	idx  bleve.Index
	docs map[string]document
	seq  int
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("creating notes index: %w", err)
	}
	return &Index{idx: idx, docs: make(map[string]document)}, nil
}

// Add indexes one answered section.
func (n *Index) Add(question, answer string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	id := fmt.Sprintf("note-%d", n.seq)
	doc := document{Question: question, Answer: answer}
	if err := n.idx.Index(id, doc); err != nil {
		return fmt.Errorf("indexing note: %w", err)
	}
	n.docs[id] = doc
	return nil
}

// Query returns up to k sections matching q, best first.
func (n *Index) Query(q string, k int) ([]Hit, error) {
	if k <= 0 || k > 50 {
		k = 10
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	query := bleve.NewMatchQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := n.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}

	var hits []Hit
	for _, h := range res.Hits {
		doc, ok := n.docs[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Question: doc.Question, Answer: doc.Answer, Score: h.Score})
	}
	return hits, nil
}

// Len reports how many sections are indexed.
func (n *Index) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.docs)
}

// Close releases the underlying index.
func (n *Index) Close() error {
	return n.idx.Close()
}
