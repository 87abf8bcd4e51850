package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docgraph/internal/graph"
	"github.com/dgallion1/docgraph/internal/pathstore"
)

// DocumentPrefix is the pathstore key under which a document's export lives.
func DocumentPrefix(docID string) string {
	return "documents/" + docID
}

// Exporter writes build results to pathstore.
type Exporter struct {
	ps  *pathstore.Client
	log *slog.Logger
}

func NewExporter(ps *pathstore.Client, log *slog.Logger) *Exporter {
	return &Exporter{ps: ps, log: log}
}

// ExportStats counts what one export wrote.
type ExportStats struct {
	Nodes int
	Links int
}

// countingSink retries each write and counts the ones that landed.
type countingSink struct {
	next  graph.Sink
	log   *slog.Logger
	stats *ExportStats
}

func (s *countingSink) PutNode(ctx context.Context, key string, value any) error {
	err := withRetry(ctx, s.log, "put node", func() error {
		return s.next.PutNode(ctx, key, value)
	})
	if err == nil {
		s.stats.Nodes++
	}
	return err
}

func (s *countingSink) PutLink(ctx context.Context, from, to, kind string, attrs map[string]any) error {
	err := withRetry(ctx, s.log, "put link", func() error {
		return s.next.PutLink(ctx, from, to, kind, attrs)
	})
	if err == nil {
		s.stats.Links++
	}
	return err
}

// Export replaces the stored export of docID with res: the previous export is
// deleted, then the graph, the hierarchy table, the chunks and a meta record
// are written.
func (e *Exporter) Export(ctx context.Context, docID, contentHash string, res *Result) (ExportStats, error) {
	var stats ExportStats
	log := e.log.With("doc_id", docID)
	prefix := DocumentPrefix(docID)

	if err := e.Delete(ctx, docID); err != nil {
		return stats, err
	}

	sink := &countingSink{
		next:  pathstore.GraphSink{Client: e.ps, Source: "docgraph:" + docID},
		log:   log,
		stats: &stats,
	}
	if err := res.Graph.Export(ctx, sink, prefix); err != nil {
		return stats, err
	}
	if err := sink.PutNode(ctx, prefix+"/hierarchy", res.Tree.Flatten()); err != nil {
		return stats, fmt.Errorf("export hierarchy: %w", err)
	}
	for i, c := range res.Chunks {
		if err := sink.PutNode(ctx, fmt.Sprintf("%s/chunks/%d", prefix, i), c); err != nil {
			return stats, fmt.Errorf("export chunk %d: %w", i, err)
		}
	}

	meta := map[string]any{
		"file_id":      res.FileID,
		"strategy":     res.Strategy,
		"content_hash": contentHash,
		"chunks":       len(res.Chunks),
		"analysis":     res.Analysis,
		"exported_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if err := sink.PutNode(ctx, prefix+"/meta", meta); err != nil {
		return stats, fmt.Errorf("export meta: %w", err)
	}

	log.Info("export complete", "nodes", stats.Nodes, "links", stats.Links)
	return stats, nil
}

// Delete removes a document's export and everything under it.
func (e *Exporter) Delete(ctx context.Context, docID string) error {
	err := withRetry(ctx, e.log, "delete", func() error {
		return e.ps.DeleteNode(ctx, DocumentPrefix(docID), true)
	})
	if err != nil {
		return fmt.Errorf("delete export %s: %w", docID, err)
	}
	return nil
}

// Meta returns the stored meta record of docID, or nil when nothing is stored.
func (e *Exporter) Meta(ctx context.Context, docID string) (*pathstore.NodeResponse, error) {
	node, err := e.ps.GetNode(ctx, DocumentPrefix(docID)+"/meta")
	if err != nil {
		return nil, fmt.Errorf("read meta %s: %w", docID, err)
	}
	return node, nil
}

// Chunks lists up to limit stored chunks of docID.
func (e *Exporter) Chunks(ctx context.Context, docID string, limit int) ([]pathstore.ListChildrenResponse, error) {
	chunks, err := e.ps.ListChildren(ctx, DocumentPrefix(docID)+"/chunks", limit)
	if err != nil {
		return nil, fmt.Errorf("list chunks %s: %w", docID, err)
	}
	return chunks, nil
}
