package project

import (
	"context"
	"database/sql"
	"path/filepath"

	"gitlab.com/tozd/go/errors"
)

// ItemType is the kind of file a project item refers to
type ItemType string

const (
	ItemDrawing ItemType = "dwg"
	ItemMisc    ItemType = "misc"
)

// Schema creates the tables every part database carries
const Schema = `
CREATE TABLE IF NOT EXISTS ProjectItems (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	item_type TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ProjectXrefs (
	source_id INTEGER NOT NULL,
	target_path TEXT NOT NULL,
	target_part TEXT NOT NULL,
	is_attach INTEGER NOT NULL DEFAULT 0,
	is_nested INTEGER NOT NULL DEFAULT 0
);
`

// 📄 Item is one file tracked by a part
type Item struct {
	ID           int64
	Name         string
	RelativePath string
	Type         ItemType
}

// Items lists the items of the given type, ordered by id
func (p *Part) Items(ctx context.Context, itemType ItemType) ([]Item, error) {
	db, err := p.open(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.DB().QueryContext(ctx,
		"SELECT id, name, relative_path, item_type FROM ProjectItems WHERE item_type = ? ORDER BY id", string(itemType))
	if err != nil {
		return nil, errors.Errorf("listing %s items: %w", p.kind, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var typ string
		if err := rows.Scan(&it.ID, &it.Name, &it.RelativePath, &typ); err != nil {
			return nil, errors.Errorf("scanning %s item: %w", p.kind, err)
		}
		it.Type = ItemType(typ)
		it.RelativePath = filepath.ToSlash(it.RelativePath)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating %s items: %w", p.kind, err)
	}
	return items, nil
}

// Related returns the files item references
func (p *Part) Related(ctx context.Context, item Item) ([]Association, error) {
	db, err := p.open(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.DB().QueryContext(ctx,
		"SELECT target_path, target_part, is_attach, is_nested FROM ProjectXrefs WHERE source_id = ? ORDER BY target_path", item.ID)
	if err != nil {
		return nil, errors.Errorf("listing references of %s: %w", item.RelativePath, err)
	}
	defer rows.Close()

	var out []Association
	for rows.Next() {
		var target, part string
		var attach, nested bool
		if err := rows.Scan(&target, &part, &attach, &nested); err != nil {
			return nil, errors.Errorf("scanning reference of %s: %w", item.RelativePath, err)
		}
		out = append(out, Association{
			Source:       item.RelativePath,
			Related:      filepath.ToSlash(target),
			RelatedPart:  PartKind(part),
			IsXrefAttach: attach,
			IsXrefNested: nested,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating references of %s: %w", item.RelativePath, err)
	}
	return out, nil
}

// InitDatabase creates the part tables in db
func InitDatabase(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return errors.Errorf("creating part tables: %w", err)
	}
	return nil
}
