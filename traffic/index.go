package traffic

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
)

// IndexSink indexes boundary traffic for full-text search across recorded
// sessions. Useful when debugging which widget sent what.
type IndexSink struct {
	mu    sync.RWMutex
	index bleve.Index
}

// trafficDocument is the indexed form of a Record.
type trafficDocument struct {
	WidgetID  string    `json:"widget_id"`
	ServerID  string    `json:"server_id"`
	Direction string    `json:"direction"`
	Protocol  string    `json:"protocol"`
	Method    string    `json:"method"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Hit is one search result.
type Hit struct {
	WidgetID  string
	Direction Direction
	Method    string
	Message   string
	Score     float64
}

// NewIndexSink creates an in-memory search index.
func NewIndexSink() (*IndexSink, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create traffic index: %w", err)
	}
	return &IndexSink{index: index}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	docMapping.AddFieldMappingsAt("message", textFieldMapping)
	docMapping.AddFieldMappingsAt("method", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("widget_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("direction", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("time", dateFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Log indexes the record. Index failures are dropped.
func (s *IndexSink) Log(rec Record) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	doc := trafficDocument{
		WidgetID:  rec.WidgetID,
		ServerID:  rec.ServerID,
		Direction: string(rec.Direction),
		Protocol:  rec.Protocol,
		Method:    rec.Method,
		Message:   string(rec.Message),
		Time:      rec.Time,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Index(uuid.New().String(), doc)
}

// Search runs a full-text query over recorded traffic.
func (s *IndexSink) Search(queryText string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchReq := bleve.NewSearchRequest(bleve.NewMatchQuery(queryText))
	searchReq.Size = limit
	searchReq.Fields = []string{"widget_id", "direction", "method", "message"}

	searchResult, err := s.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var hits []Hit
	for _, h := range searchResult.Hits {
		hit := Hit{Score: h.Score}
		if v, ok := h.Fields["widget_id"].(string); ok {
			hit.WidgetID = v
		}
		if v, ok := h.Fields["direction"].(string); ok {
			hit.Direction = Direction(v)
		}
		if v, ok := h.Fields["method"].(string); ok {
			hit.Method = v
		}
		if v, ok := h.Fields["message"].(string); ok {
			hit.Message = v
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Close releases the index.
func (s *IndexSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
