package opts

import (
	"context"

	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/host"
	plog "github.com/walteh/plantshare/pkg/log"
	"github.com/walteh/plantshare/pkg/operation"
	"github.com/walteh/plantshare/pkg/session"
	"github.com/walteh/plantshare/pkg/status"
)

// Host runs the registered share commands
type Host interface {
	Commands() []host.Command
	Run(ctx context.Context, name string, sink status.Sink) (*operation.Result, error)
}

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config   *config.Config
	Sessions session.Store
	Host     Host
	Console  *plog.Logger
	Debug    bool
	Version  string
}
