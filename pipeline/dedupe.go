package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/storage"
)

type attachmentKey struct {
	documentID core.ID
	path       string
}

// DedupeAttachments keeps the first attachment of every (document, path)
// pair and deletes the rest. It returns the number of deleted attachments;
// running it again deletes nothing.
func DedupeAttachments(ctx context.Context, documents storage.DocumentRepository) (int, error) {
	atts, err := documents.ListAttachments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list attachments: %w", err)
	}

	seen := make(map[attachmentKey]struct{}, len(atts))
	var dups []core.ID
	for _, att := range atts {
		key := attachmentKey{documentID: att.DocumentId, path: att.Path}
		if _, ok := seen[key]; ok {
			dups = append(dups, att.Id)
			continue
		}
		seen[key] = struct{}{}
	}
	if len(dups) == 0 {
		return 0, nil
	}

	if err := documents.DeleteAttachments(ctx, dups...); err != nil {
		return 0, fmt.Errorf("delete duplicate attachments: %w", err)
	}
	slog.Default().With("component", "dedupe").Info("removed duplicate attachments", "count", len(dups))
	return len(dups), nil
}
