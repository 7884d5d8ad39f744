package commands

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/cmd/plantshare/opts"
)

// NewSignOutCmd creates the signout command
func NewSignOutCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored sign-in for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := opts.Config.Backend
			if err := opts.Sessions.Delete(cmd.Context(), backend); err != nil {
				return errors.Errorf("deleting %s session: %w", backend, err)
			}
			opts.Console.Successf("Signed out of %s", backend)
			return nil
		},
	}

	return cmd
}
