// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/cmd/plantshare/commands"
	"github.com/walteh/plantshare/cmd/plantshare/opts"

	_ "github.com/walteh/plantshare/pkg/remote/github"
	_ "github.com/walteh/plantshare/pkg/remote/s3"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("loading .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootOpts := &opts.RootOpts{Version: GetVersionInfo().Version}

	rootCmd := &cobra.Command{
		Use:   "plantshare",
		Short: "Share Plant projects with a collaboration service",
		Long: `plantshare stages a local Plant project, converts its databases to
sqlite when needed and uploads it with its xref associations to the
configured collaboration backend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging()
			cmd.SetContext(logger.WithContext(cmd.Context()))
			if cmd.Name() == "version" {
				return nil
			}
			return loadRootOpts(cmd.Context(), rootOpts)
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewRunCmd(rootOpts),
		commands.NewCommandsCmd(rootOpts),
		commands.NewServeCmd(rootOpts),
		commands.NewSignOutCmd(rootOpts),
		newVersionCmd(),
	)

	err := rootCmd.ExecuteContext(ctx)
	if closer, ok := rootOpts.Sessions.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("closing session store")
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
