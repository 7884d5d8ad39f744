// Package xref collects the cross-file references of a project so they can be
// submitted alongside its files.
package xref

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/project"
)

// Associations maps a project relative file path to the files it references
type Associations map[string][]project.Association

// Count returns the total number of associations
func (a Associations) Count() int {
	n := 0
	for _, list := range a {
		n += len(list)
	}
	return n
}

// PartSource is the part behavior collection needs
type PartSource interface {
	Kind() project.PartKind
	ItemType() project.ItemType
	Items(ctx context.Context, itemType project.ItemType) ([]project.Item, error)
	Related(ctx context.Context, item project.Item) ([]project.Association, error)
}

// 🔎 Collect gathers the associations of every item of every part. Files
// without associations are left out.
func Collect(ctx context.Context, parts project.Parts) (Associations, error) {
	sources := make([]PartSource, 0, len(parts))
	for _, part := range parts.Ordered() {
		sources = append(sources, part)
	}
	return CollectFrom(ctx, sources...)
}

// CollectFrom is Collect over arbitrary part sources
func CollectFrom(ctx context.Context, parts ...PartSource) (Associations, error) {
	logger := zerolog.Ctx(ctx)
	out := Associations{}

	for _, part := range parts {
		items, err := part.Items(ctx, part.ItemType())
		if err != nil {
			return nil, errors.Errorf("listing %s items: %w", part.Kind(), err)
		}

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, errors.Errorf("collecting associations: %w", err)
			}

			related, err := part.Related(ctx, item)
			if err != nil {
				return nil, errors.Errorf("collecting associations of %s: %w", item.RelativePath, err)
			}
			if len(related) == 0 {
				continue
			}
			out[item.RelativePath] = append(out[item.RelativePath], related...)
		}

		logger.Debug().Str("part", string(part.Kind())).Int("items", len(items)).Msg("collected part associations")
	}

	return out, nil
}
