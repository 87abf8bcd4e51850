package graph

import (
	"context"
	"fmt"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Sink receives an exported graph. Keys are slash-separated paths.
type Sink interface {
	PutNode(ctx context.Context, key string, value any) error
	PutLink(ctx context.Context, from, to string, kind string, attrs map[string]any) error
}

// NodeRecord is the exported form of a node. Image payloads stay behind.
type NodeRecord struct {
	ID         string             `json:"id"`
	FileID     string             `json:"file_id,omitempty"`
	Class      doctree.Class      `json:"class"`
	Level      string             `json:"level"`
	PageNumber int                `json:"page_number"`
	BBox       doctree.BBox       `json:"bbox"`
	Text       string             `json:"text,omitempty"`
	Fonts      []doctree.FontSpan `json:"fonts,omitempty"`
	HasImage   bool               `json:"has_image,omitempty"`
}

// NodeKey is where a node is stored under prefix.
func NodeKey(prefix, id string) string {
	return prefix + "/nodes/" + id
}

// Record converts a node for export.
func (n *Node) Record() NodeRecord {
	f := n.Fragment
	r := NodeRecord{
		ID:         f.ID,
		FileID:     f.FileID,
		Class:      f.Class,
		Level:      n.Level.String(),
		PageNumber: f.PageNumber,
		BBox:       f.BBox,
		Text:       f.Content(),
		HasImage:   f.Image != "",
	}
	if f.Text != nil {
		r.Fonts = f.Text.Fonts
	}
	return r
}

// Export writes every node, then every edge, to sink. It stops at the first
// error.
func (g *Graph) Export(ctx context.Context, sink Sink, prefix string) error {
	for _, id := range g.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.PutNode(ctx, NodeKey(prefix, id), g.nodes[id].Record()); err != nil {
			return fmt.Errorf("export node %s: %w", id, err)
		}
	}
	for i, e := range g.edges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.PutLink(ctx, NodeKey(prefix, e.Source), NodeKey(prefix, e.Target), string(e.Type), e.Attrs); err != nil {
			return fmt.Errorf("export edge %d (%s %s->%s): %w", i, e.Type, e.Source, e.Target, err)
		}
	}
	return nil
}
