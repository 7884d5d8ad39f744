package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/cmd/plantshare/opts"
)

// NewCommandsCmd creates the commands command
func NewCommandsCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the registered share commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := pterm.TableData{{"Command", "Async", "Description"}}
			for _, c := range opts.Host.Commands() {
				data = append(data, []string{c.Name, strconv.FormatBool(c.Async), c.Description})
			}

			err := pterm.DefaultTable.
				WithHasHeader().
				WithWriter(cmd.OutOrStdout()).
				WithData(data).
				Render()
			if err != nil {
				return errors.Errorf("rendering commands: %w", err)
			}
			return nil
		},
	}

	return cmd
}
