package pathstore

import (
	"context"
)

// GraphSink adapts the client to the node/link shape of a graph export.
// Every write is tagged with Source.
type GraphSink struct {
	Client *Client
	Source string
}

func (s GraphSink) PutNode(ctx context.Context, key string, value any) error {
	return s.Client.PutNode(ctx, key, NodeRequest{
		Value:      value,
		MemoryType: "document",
		Source:     s.Source,
	})
}

func (s GraphSink) PutLink(ctx context.Context, from, to, kind string, attrs map[string]any) error {
	summary := kind
	if label, ok := attrs["label"].(string); ok && label != "" {
		summary = kind + " " + label
	}
	return s.Client.PutLink(ctx, LinkRequest{
		From:    from,
		To:      to,
		Kind:    kind,
		Weight:  1,
		Summary: summary,
		Attrs:   attrs,
	})
}
