// internal/common/retrieval/retriever.go
// Package retrieval provides chunk search over the project document store.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/models"
)

// Retriever is the document search contract the orchestrator depends on.
type Retriever interface {
	Search(ctx context.Context, query string, documentIDs []string, topK int) ([]models.Chunk, error)
}

// ElasticsearchRetriever searches document chunks in an Elasticsearch index.
type ElasticsearchRetriever struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchRetriever(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchRetriever {
	return &ElasticsearchRetriever{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "retriever"}),
	}
}

// Search runs a match query over chunk text, filtered to the given document
// set. An empty documentIDs slice matches nothing: retrieval is always scoped
// to a project's documents.
func (r *ElasticsearchRetriever) Search(ctx context.Context, query string, documentIDs []string, topK int) ([]models.Chunk, error) {
	if len(documentIDs) == 0 {
		return []models.Chunk{}, nil
	}

	esQuery := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"chunk_text": query,
					},
				},
				"filter": map[string]interface{}{
					"terms": map[string]interface{}{
						"document_id": documentIDs,
					},
				},
			},
		},
	}

	body, err := json.Marshal(esQuery)
	if err != nil {
		return nil, pipelineerrors.NewRetrievalFailedError(err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, pipelineerrors.NewSearchTimeoutError()
		}
		return nil, pipelineerrors.NewRetrievalFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, pipelineerrors.NewRetrievalFailedError(fmt.Errorf("search error: %s", res.Status()))
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					DocumentTitle string `json:"document_title"`
					PageNumber    int    `json:"page_number"`
					ChunkText     string `json:"chunk_text"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, pipelineerrors.NewRetrievalFailedError(fmt.Errorf("decode error: %v", err))
	}

	chunks := make([]models.Chunk, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		chunks = append(chunks, models.Chunk{
			DocumentTitle: hit.Source.DocumentTitle,
			PageNumber:    hit.Source.PageNumber,
			ChunkText:     hit.Source.ChunkText,
			Score:         hit.Score,
		})
	}

	r.logger.Debug("search completed", map[string]interface{}{
		"query":     query,
		"documents": len(documentIDs),
		"chunksHit": len(chunks),
	})

	return chunks, nil
}
