package version

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/filesync/cmd/util"
	"github.com/sidkik/filesync/pkg/config"
	"github.com/sidkik/filesync/pkg/errors"
	syncClient "github.com/sidkik/filesync/pkg/sync/client"
	"github.com/sidkik/filesync/pkg/version"
)

const getVersionTimeout = 10 * time.Second

// New creates a new `version` command.
func New() *cobra.Command {
	var flags util.NodeFlags
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the local and server version of filesync",
		Long: "Print the local version of filesync and the version running\n" +
			"on the sync server.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := flags.Load(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := run(cfg.WithDefaults(), os.Stdout); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	flags.Register(cmd, false)
	return cmd
}

func run(cfg config.Node, out io.Writer) error {
	fmt.Fprintf(out, "local version:  %s\n", version.Version)

	client, err := syncClient.New(cfg.Address(), afero.NewMemMapFs())
	if err != nil {
		return errors.WithContext(err, "connect to sync server")
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), getVersionTimeout)
	defer cancel()

	serverVersion, err := client.GetVersion(ctx)
	if err != nil {
		log.WithError(err).Debug("Failed to get server version")
		return errors.NewFriendlyError("Failed to get the server version from %s. "+
			"Is the server running?", cfg.Address())
	}

	fmt.Fprintf(out, "server version: %s\n", serverVersion)
	return nil
}
