// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

var tracer = otel.Tracer("aleutian.research.retrieval")

// ResearchSourceClassName is the Weaviate class holding the corpus.
const ResearchSourceClassName = "ResearchSource"

// perQueryLimit caps results fetched for one generated query.
const perQueryLimit = 10

// WeaviateSearcher is the production corpus backend.
//
// # Description
//
// Documents are ingested once per corpus update and queried per pipeline
// run. Search issues one GraphQL Get per query with a Like filter over the
// searchable text and merges the results; the pipeline deduplicates
// afterwards, so overlap between queries is fine.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying client is.
type WeaviateSearcher struct {
	client *weaviate.Client
}

// NewWeaviateSearcher wraps an initialized client.
func NewWeaviateSearcher(client *weaviate.Client) *WeaviateSearcher {
	return &WeaviateSearcher{client: client}
}

// GetResearchSourceSchema returns the corpus class definition.
func GetResearchSourceSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true
	indexSearchable := new(bool)
	*indexSearchable = true

	return &models.Class{
		Class:       ResearchSourceClassName,
		Description: "Vetted research corpus entries with full text for snippet extraction",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "source_id",
				DataType:        []string{"text"},
				Description:     "Connector-assigned stable identifier",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "canonical_id",
				DataType:        []string{"text"},
				Description:     "Cross-connector identity (DOI or similar)",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "title",
				DataType:        []string{"text"},
				Description:     "Source title",
				IndexSearchable: indexSearchable,
				Tokenization:    "word",
			},
			{
				Name:            "abstract",
				DataType:        []string{"text"},
				Description:     "Source abstract",
				IndexSearchable: indexSearchable,
				Tokenization:    "word",
			},
			{
				Name:        "authors",
				DataType:    []string{"text[]"},
				Description: "Author names",
			},
			{
				Name:            "year",
				DataType:        []string{"int"},
				Description:     "Publication year",
				IndexFilterable: indexFilterable,
			},
			{
				Name:     "url",
				DataType: []string{"text"},
			},
			{
				Name:     "pdf_url",
				DataType: []string{"text"},
			},
			{
				Name:            "connector",
				DataType:        []string{"text"},
				Description:     "Connector that produced this entry (openalex, pubmed, arxiv, ...)",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "full_text",
				DataType:        []string{"text"},
				Description:     "Full text used for snippet extraction",
				IndexSearchable: indexSearchable,
				Tokenization:    "word",
			},
		},
	}
}

// EnsureSchema creates the corpus class when it does not exist yet.
func (w *WeaviateSearcher) EnsureSchema(ctx context.Context) error {
	_, err := w.client.Schema().ClassGetter().WithClassName(ResearchSourceClassName).Do(ctx)
	if err == nil {
		slog.Debug("Weaviate class already exists", "class", ResearchSourceClassName)
		return nil
	}
	if err := w.client.Schema().ClassCreator().WithClass(GetResearchSourceSchema()).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", ResearchSourceClassName, err)
	}
	slog.Info("Created Weaviate class", "class", ResearchSourceClassName)
	return nil
}

// Ingest batch-imports corpus documents. Object ids are derived from the
// source id hash, so re-ingesting the same document is an upsert.
func (w *WeaviateSearcher) Ingest(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, len(docs))
	for i, doc := range docs {
		hash := sha256.Sum256([]byte(doc.ID))
		objUUID, _ := uuid.FromBytes(hash[:16])
		objects[i] = &models.Object{
			Class: ResearchSourceClassName,
			ID:    strfmt.UUID(objUUID.String()),
			Properties: map[string]interface{}{
				"source_id":    doc.ID,
				"canonical_id": doc.CanonicalID,
				"title":        doc.Title,
				"abstract":     doc.Abstract,
				"authors":      doc.Authors,
				"year":         doc.Year,
				"url":          doc.URL,
				"pdf_url":      doc.PDFURL,
				"connector":    doc.Connector,
				"full_text":    doc.FullText,
			},
		}
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to batch import corpus documents: %w", err)
	}

	created := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			created++
		} else if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "error", errItem.Message)
			}
		}
	}
	slog.Info("Corpus ingestion complete", "documents", len(docs), "created", created)
	return created, nil
}

// weaviateSourceResponse is the expected Get response structure.
// Structure: {"Get": {"ResearchSource": [...]}}
type weaviateSourceResponse struct {
	Get struct {
		ResearchSource []weaviateSourceEntry `json:"ResearchSource"`
	} `json:"Get"`
}

type weaviateSourceEntry struct {
	SourceID    string   `json:"source_id"`
	CanonicalID string   `json:"canonical_id"`
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract"`
	Authors     []string `json:"authors"`
	Year        int      `json:"year"`
	URL         string   `json:"url"`
	PDFURL      string   `json:"pdf_url"`
	Connector   string   `json:"connector"`
	FullText    string   `json:"full_text"`
}

func (e weaviateSourceEntry) document() Document {
	return Document{
		ID:          e.SourceID,
		CanonicalID: e.CanonicalID,
		Title:       e.Title,
		Abstract:    e.Abstract,
		Authors:     e.Authors,
		Year:        e.Year,
		URL:         e.URL,
		PDFURL:      e.PDFURL,
		Connector:   e.Connector,
		FullText:    e.FullText,
	}
}

var sourceFields = []graphql.Field{
	{Name: "source_id"},
	{Name: "canonical_id"},
	{Name: "title"},
	{Name: "abstract"},
	{Name: "authors"},
	{Name: "year"},
	{Name: "url"},
	{Name: "pdf_url"},
	{Name: "connector"},
}

// Search resolves each query against the corpus and merges the results.
// Deduplication is the pipeline's job; overlap between queries is expected.
func (w *WeaviateSearcher) Search(ctx context.Context, queries []string) ([]datatypes.SourceRef, error) {
	ctx, span := tracer.Start(ctx, "WeaviateSearcher.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.queries", len(queries)))

	var out []datatypes.SourceRef
	for _, query := range queries {
		entries, err := w.searchOne(ctx, query)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		for _, e := range entries {
			out = append(out, e.document().SourceRef())
		}
	}
	span.SetAttributes(attribute.Int("retrieval.sources", len(out)))
	return out, nil
}

func (w *WeaviateSearcher) searchOne(ctx context.Context, query string) ([]weaviateSourceEntry, error) {
	whereFilter := filters.Where().
		WithPath([]string{"abstract"}).
		WithOperator(filters.Like).
		WithValueString(likePattern(query))

	result, err := w.client.GraphQL().Get().
		WithClassName(ResearchSourceClassName).
		WithWhere(whereFilter).
		WithFields(sourceFields...).
		WithLimit(perQueryLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}
	return parseSourceResult(result.Data)
}

// Snippets fetches the stored full text for each source and chunks it.
func (w *WeaviateSearcher) Snippets(ctx context.Context, sources []datatypes.SourceRef) ([]datatypes.EvidenceSnippetRef, error) {
	ctx, span := tracer.Start(ctx, "WeaviateSearcher.Snippets")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.sources", len(sources)))

	var out []datatypes.EvidenceSnippetRef
	for _, src := range sources {
		whereFilter := filters.Where().
			WithPath([]string{"source_id"}).
			WithOperator(filters.Equal).
			WithValueString(src.ID)

		fields := append([]graphql.Field{}, sourceFields...)
		fields = append(fields, graphql.Field{Name: "full_text"})

		result, err := w.client.GraphQL().Get().
			WithClassName(ResearchSourceClassName).
			WithWhere(whereFilter).
			WithFields(fields...).
			WithLimit(1).
			Do(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("weaviate query failed: %w", err)
		}
		entries, err := parseSourceResult(result.Data)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			slog.Warn("Source not found for snippet extraction", "source_id", src.ID)
			continue
		}
		snippets, err := ChunkDocument(entries[0].document())
		if err != nil {
			return nil, err
		}
		out = append(out, snippets...)
	}
	span.SetAttributes(attribute.Int("retrieval.snippets", len(out)))
	return out, nil
}

// parseSourceResult parses the GraphQL response using the marshal/unmarshal
// pattern to handle type conversion.
func parseSourceResult(data interface{}) ([]weaviateSourceEntry, error) {
	rawBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	var parsed weaviateSourceResponse
	if err := json.Unmarshal(rawBytes, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return parsed.Get.ResearchSource, nil
}

// likePattern wraps the query's longest term in wildcards. Weaviate's Like
// operator matches per-token; the longest term is the most selective.
func likePattern(query string) string {
	longest := ""
	for _, w := range memoryWordPattern.FindAllString(strings.ToLower(query), -1) {
		if len(w) > len(longest) {
			longest = w
		}
	}
	if longest == "" {
		return "*"
	}
	return "*" + longest + "*"
}
