package commands

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/cmd/plantshare/opts"
	hostapi "github.com/walteh/plantshare/pkg/host/http"
)

// NewServeCmd creates the serve command
func NewServeCmd(opts *opts.RootOpts) *cobra.Command {
	var (
		addr         string
		allowOrigins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the share commands over HTTP",
		Long: `Serve exposes the share commands on a small HTTP bridge:
  GET  /health
  GET  /commands
  POST /commands/:name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			srv := hostapi.NewServer(opts.Host, hostapi.ServerOptions{
				AllowOrigins: allowOrigins,
				Version:      opts.Version,
			})
			opts.Console.Infof("Serving share commands on http://%s", addr)
			if err := srv.ListenAndServe(cmd.Context(), addr); err != nil {
				return errors.Errorf("serving: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8360", "listen address")
	cmd.Flags().StringSliceVar(&allowOrigins, "allow-origin", nil, "allowed CORS origins, all when empty")

	return cmd
}
