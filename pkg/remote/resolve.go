package remote

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Identifiers name a target. Each one matches an ID or a name exactly.
type Identifiers struct {
	Hub     string
	Project string
	Folder  string
}

func matches(id, name, ident string) bool {
	return ident != "" && (id == ident || name == ident)
}

// 🧭 Resolve looks up the target named by ids. The lookup runs in the
// background while Resolve waits for it or for ctx. A missing hub or project
// returns nil, nil. A folder that cannot be found falls back to the project.
func Resolve(ctx context.Context, session Session, ids Identifiers) (*Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("resolving target: %w", err)
	}

	type result struct {
		target *Target
		err    error
	}

	ch := make(chan result, 1)
	go func() {
		t, err := resolve(ctx, session, ids)
		ch <- result{target: t, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Errorf("resolving target: %w", ctx.Err())
	case r := <-ch:
		return r.target, r.err
	}
}

func resolve(ctx context.Context, session Session, ids Identifiers) (*Target, error) {
	logger := zerolog.Ctx(ctx)

	hubs, err := session.Hubs(ctx)
	if err != nil {
		return nil, errors.Errorf("listing hubs: %w", err)
	}
	var hub *Hub
	for i := range hubs {
		if matches(hubs[i].ID, hubs[i].Name, ids.Hub) {
			hub = &hubs[i]
			break
		}
	}
	if hub == nil {
		logger.Debug().Str("hub", ids.Hub).Int("hubs", len(hubs)).Msg("hub not found")
		return nil, nil
	}

	projects, err := session.Projects(ctx, *hub)
	if err != nil {
		return nil, errors.Errorf("listing projects of %s: %w", hub.Name, err)
	}
	var proj *Project
	for i := range projects {
		if matches(projects[i].ID, projects[i].Name, ids.Project) {
			proj = &projects[i]
			break
		}
	}
	if proj == nil {
		logger.Debug().Str("project", ids.Project).Str("hub", hub.Name).Msg("project not found")
		return nil, nil
	}

	target := &Target{Hub: *hub, Project: *proj}
	if ids.Folder == "" {
		return target, nil
	}

	// the project's own top folder is a project level target
	if proj.RootFolder != "" && ids.Folder == proj.RootFolder {
		return target, nil
	}

	folders, err := session.Folders(ctx, *hub, *proj)
	if err != nil {
		return nil, errors.Errorf("listing folders of %s: %w", proj.Name, err)
	}
	for i := range folders {
		if matches(folders[i].ID, folders[i].Name, ids.Folder) {
			target.Folder = &folders[i]
			return target, nil
		}
	}

	logger.Debug().Str("folder", ids.Folder).Str("project", proj.Name).Msg("folder not found, using project")
	return target, nil
}
