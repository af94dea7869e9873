package util

import (
	"github.com/spf13/cobra"

	"github.com/sidkik/filesync/pkg/config"
	"github.com/sidkik/filesync/pkg/errors"
)

// NodeFlags holds the command line flags for locating a node. Values set on
// the command line take precedence over the config file.
type NodeFlags struct {
	ConfigPath string
	Host       string
	Port       int
	Role       string
}

// Register adds the connection flags to `cmd`. The `--type` flag is only
// added if `withRole` is set.
func (f *NodeFlags) Register(cmd *cobra.Command, withRole bool) {
	if withRole {
		cmd.Flags().StringVar(&f.Role, "type", "",
			`The role of this node, either "server" or "client".`)
	}
	cmd.Flags().StringVar(&f.Host, "host", config.DefaultHost,
		"The host the server listens on.")
	cmd.Flags().IntVar(&f.Port, "port", config.DefaultPort,
		"The port the server listens on.")
	cmd.Flags().StringVar(&f.ConfigPath, "config", "",
		"The path to the node config. Defaults to "+config.NodeConfigPath+
			" if it exists.")
}

// Load parses the node config and applies the flags that were set on `cmd`.
func (f NodeFlags) Load(cmd *cobra.Command) (config.Node, error) {
	cfg, err := config.ParseNode(f.ConfigPath)
	if err != nil {
		return config.Node{}, errors.WithContext(err, "parse config")
	}

	flags := cmd.Flags()
	if flags.Changed("type") {
		cfg.Role = f.Role
	}
	if flags.Changed("host") {
		cfg.Host = f.Host
	}
	if flags.Changed("port") {
		cfg.Port = f.Port
	}
	return cfg, nil
}
