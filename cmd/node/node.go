package node

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/buger/goterm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sidkik/filesync/cmd/util"
	"github.com/sidkik/filesync/pkg/config"
	"github.com/sidkik/filesync/pkg/errors"
	"github.com/sidkik/filesync/pkg/fswatch"
	"github.com/sidkik/filesync/pkg/store"
	syncClient "github.com/sidkik/filesync/pkg/sync/client"
	"github.com/sidkik/filesync/pkg/sync/dispatch"
	"github.com/sidkik/filesync/pkg/sync/server"
	"github.com/sidkik/filesync/pkg/version"
)

// versionCheckTimeout bounds the initial round trip the client makes to the
// server.
const versionCheckTimeout = 10 * time.Second

// changeBuffer is the number of changes that may be queued between the
// watcher and the dispatcher.
const changeBuffer = 64

// Mocked for unit testing.
var fs = afero.NewOsFs()

// New creates a new `node` command.
func New() *cobra.Command {
	var flags util.NodeFlags
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a file sync server or client",
		Long: "Run a file sync node.\n\n" +
			"A server stores the files it receives in its root directory.\n" +
			"A client watches its root directory and replicates every change " +
			"to the server.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := flags.Load(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			cfg = cfg.WithDefaults()
			if err := cfg.Validate(); err != nil {
				util.HandleFatalError(err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, os.Stdout); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	flags.Register(cmd, true)
	return cmd
}

func run(ctx context.Context, cfg config.Node, out io.Writer) error {
	switch cfg.Role {
	case config.RoleServer:
		return runServer(ctx, cfg, out)
	case config.RoleClient:
		return runClient(ctx, cfg, out)
	}
	return errors.New("unknown node type %q", cfg.Role)
}

func runServer(ctx context.Context, cfg config.Node, out io.Writer) error {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return errors.WithContext(err, "resolve root")
	}

	st, err := store.New(fs, root)
	if err != nil {
		return errors.WithContext(err, "create store")
	}

	lis, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return errors.NewFriendlyError("Failed to listen on %s: %s", cfg.Address(), err)
	}

	printServerIntro(out, lis.Addr().String(), st.Root())
	return server.Serve(ctx, lis, st)
}

func printServerIntro(out io.Writer, address, root string) {
	fmt.Fprintf(out, "\t===>\t%s\t<===\n\n", goterm.Bold("File Sync Service"))
	fmt.Fprintf(out, "Listening at\t\t:\t[%s]\n", address)
	fmt.Fprintf(out, "Synchronized Folder\t:\t<%s/>\n", filepath.Base(root))
	fmt.Fprintf(out, "+ %s +\n\n", "==================================================")
}

func runClient(ctx context.Context, cfg config.Node, out io.Writer) error {
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
	defer func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Debug("Failed to close sync client")
		}
	}()

	if err := checkServerVersion(ctx, client, cfg.Address()); err != nil {
		return err
	}

	changes := make(chan fswatch.Change, changeBuffer)
	detector, err := fswatch.New(fswatch.Config{
		Dir:        root,
		Debounce:   time.Duration(cfg.Debounce),
		PairWindow: time.Duration(cfg.PairWindow),
		Ignore:     cfg.Ignore,
	}, changes)
	if err != nil {
		return errors.WithContext(err, "create watcher")
	}

	dispatcher := dispatch.New(client, dispatch.Config{
		Workers:     cfg.Workers,
		CallTimeout: time.Duration(cfg.CallTimeout),
		Output:      out,
	})

	fmt.Fprintf(out, "[ENABLE] Watching <%s/>, syncing to [%s]\n\n",
		filepath.Base(root), cfg.Address())

	// The dispatcher isn't tied to the watcher's context so that it finishes
	// the changes that were accepted before shutdown.
	g, watchCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer util.HandlePanic()
		defer close(changes)
		return detector.Watch(watchCtx)
	})
	g.Go(func() error {
		defer util.HandlePanic()
		dispatcher.Run(context.Background(), changes)
		return nil
	})

	if err := g.Wait(); err != nil {
		return errors.WithContext(err, "watch")
	}
	log.Info("Stopped syncing")
	return nil
}

func checkServerVersion(ctx context.Context, client syncClient.Client, address string) error {
	ctx, cancel := context.WithTimeout(ctx, versionCheckTimeout)
	defer cancel()

	serverVersion, err := client.GetVersion(ctx)
	if err != nil {
		log.WithError(err).Debug("Failed to get server version")
		return errors.NewFriendlyError("Failed to connect to the sync server at %s.\n"+
			"Is `filesync node --type server` running?", address)
	}

	if !version.Compatible(serverVersion, version.Version) {
		return errors.NewFriendlyError("Incompatible version of filesync detected.\n"+
			"The server is running %s, but this client is %s.",
			serverVersion, version.Version)
	}
	return nil
}
