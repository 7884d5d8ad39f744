package commands

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/cmd/plantshare/opts"
	plog "github.com/walteh/plantshare/pkg/log"
	"github.com/walteh/plantshare/pkg/operation"
)

// NewRunCmd creates the run command
func NewRunCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <COMMAND>",
		Short: "Run a share command",
		Long: `Run executes one of the registered share commands against the configured
project. Progress is written to the console. A failed or canceled share is
reported but does not fail the command; only an unknown command or a
configuration problem does.`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if opts.Host == nil || len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var names []string
			for _, c := range opts.Host.Commands() {
				if strings.HasPrefix(c.Name, strings.ToUpper(toComplete)) {
					names = append(names, c.Name)
				}
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.Config

			opts.Console.Header(strings.ToUpper(args[0]))
			opts.Console.StartShareOperation(ctx, plog.ShareOperation{
				Project: filepath.Base(cfg.ProjectPath),
				Hub:     cfg.Hub,
				Target:  cfg.Hub + "/" + cfg.Project,
				WorkDir: cfg.WorkDir,
			})
			defer opts.Console.EndShareOperation(ctx)

			res, err := opts.Host.Run(ctx, args[0], opts.Console)
			if err != nil {
				return errors.Errorf("running %s: %w", args[0], err)
			}

			switch res.Outcome {
			case operation.OutcomeDone:
				if res.Uploaded == nil {
					opts.Console.Success("Shared project")
					break
				}
				opts.Console.LogNewline()
				logUploaded(cmd, opts, res)
				opts.Console.LogNewline()
				opts.Console.Successf("Shared %d files to %s", res.Uploaded.Files, res.Uploaded.Location)
			case operation.OutcomeNotReady:
				opts.Console.Warning("Not signed in to the collaboration service")
			case operation.OutcomeNothingToDo:
				opts.Console.Warningf("No remote target found for %s/%s", cfg.Hub, cfg.Project)
			case operation.OutcomeFailed:
				opts.Console.Errorf("Share failed while %s: %s", res.Phase, strings.Join(res.Messages(), "; "))
			case operation.OutcomeCanceled:
				opts.Console.Error("Share canceled")
			default:
				opts.Console.Infof("Share finished: %s", res.Outcome)
			}
			return nil
		},
	}

	return cmd
}

// logUploaded writes one console line per uploaded file
func logUploaded(cmd *cobra.Command, opts *opts.RootOpts, res *operation.Result) {
	for _, p := range res.Uploaded.Paths {
		part := "project"
		if dir, _, ok := strings.Cut(p, "/"); ok {
			part = dir
		}
		opts.Console.LogFileOperation(cmd.Context(), plog.FileOperation{
			Path:         p,
			Part:         part,
			Status:       "uploaded",
			IsNew:        true,
			IsConverted:  res.Migrated && strings.EqualFold(filepath.Ext(p), ".dcf"),
			Associations: len(res.Associations[p]),
		})
	}
}
