package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/buger/goterm"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/filesync/cmd/util"
	"github.com/sidkik/filesync/pkg/config"
	"github.com/sidkik/filesync/pkg/errors"
	"github.com/sidkik/filesync/pkg/proto/filesync"
	syncClient "github.com/sidkik/filesync/pkg/sync/client"
)

// Mocked for unit testing.
var fs = afero.NewOsFs()

// New creates a new `download` command.
func New() *cobra.Command {
	var flags util.NodeFlags
	cmd := &cobra.Command{
		Use:   "download <file>",
		Short: "Download a file from the server into the client directory",
		Long: "Download a file from the server into the client directory.\n\n" +
			"This is used to check that a file was replicated correctly. " +
			"The local copy is only overwritten if the server has the file.",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := flags.Load(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			cfg.Role = config.RoleClient
			cfg = cfg.WithDefaults()
			if err := cfg.Validate(); err != nil {
				util.HandleFatalError(err)
			}

			if err := run(context.Background(), cfg, args[0], os.Stdout); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	flags.Register(cmd, false)
	return cmd
}

func run(ctx context.Context, cfg config.Node, name string, out io.Writer) error {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return errors.WithContext(err, "resolve root")
	}
	if err := fs.MkdirAll(root, 0755); err != nil {
		return errors.WithContext(err, "create root")
	}

	client, err := syncClient.New(cfg.Address(), afero.NewBasePathFs(fs, root))
	if err != nil {
		return errors.WithContext(err, "create sync client")
	}
	defer client.Close()

	fmt.Fprintf(out, "=> Downloading file: %s\n", name)
	tok, err := client.Download(ctx, name)
	if err != nil {
		return errors.WithContext(err, "download")
	}

	color := goterm.GREEN
	if tok == filesync.Failed {
		color = goterm.RED
	}
	fmt.Fprintln(out, goterm.Color(tok.String(), color))
	return nil
}
