package config

import (
	"encoding/json"
	"net"
	"path/filepath"
	"strconv"
	"time"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/sidkik/filesync/pkg/errors"
)

const (
	// NodeConfigPath is the default path to the node config. It's fine for
	// there to be no file at this path.
	NodeConfigPath = "~/.filesync.yaml"

	// InitialNodeConfigVersion is the version assumed for config files
	// that don't specify one.
	InitialNodeConfigVersion = "v1alpha1"

	// SupportedNodeConfigVersion is the node config version understood by
	// this binary.
	SupportedNodeConfigVersion = "v1alpha1"

	// RoleServer is the role of the node that stores replicated files.
	RoleServer = "server"

	// RoleClient is the role of the node that watches a directory and
	// replicates its changes to the server.
	RoleClient = "client"

	// DefaultHost is the host the server listens on, and the client dials.
	DefaultHost = "localhost"

	// DefaultPort is the port the server listens on, and the client dials.
	DefaultPort = 18862

	// ServerRoot and ClientRoot are the default File Store roots, relative to
	// the working directory.
	ServerRoot = "server_files"
	ClientRoot = "client_files"
)

// Node configures a single filesync node. Zero values mean "use the default".
type Node struct {
	Version string `json:"version,omitempty"`

	Role string `json:"role,omitempty"`
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// Root is the directory that's served (server) or watched (client).
	// Relative paths in a config file are relative to the file's directory.
	Root string `json:"root,omitempty"`

	// Debounce is the minimum time between two modifications of the same
	// file that are replicated separately.
	Debounce Duration `json:"debounce,omitempty"`

	// PairWindow is how long a rename waits for its destination before it's
	// treated as a delete.
	PairWindow Duration `json:"pairWindow,omitempty"`

	Workers     int      `json:"workers,omitempty"`
	CallTimeout Duration `json:"callTimeout,omitempty"`

	// Ignore contains gitignore-style patterns for files that are never
	// replicated.
	Ignore []string `json:"ignore,omitempty"`
}

func (n Node) getVersion() string {
	return n.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseNode parses the node config at `path`. If `path` is empty, the config
// at NodeConfigPath is used if it exists, and an empty config otherwise.
func ParseNode(path string) (Node, error) {
	explicit := path != ""
	if !explicit {
		path = NodeConfigPath
	}

	path, err := homedirExpand(path)
	if err != nil {
		return Node{}, errors.WithContext(err, "expand config path")
	}

	config := Node{Version: InitialNodeConfigVersion}
	if err := parseConfig(path, &config, SupportedNodeConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			if !explicit {
				return Node{}, nil
			}
			return Node{}, errors.NewFriendlyError(
				"The filesync config file doesn't exist at %q.", path)
		}
		return Node{}, errors.WithContext(err, "parse")
	}

	if config.Root != "" {
		config.Root, err = homedirExpand(config.Root)
		if err != nil {
			return Node{}, errors.WithContext(err, "expand root path")
		}

		if !filepath.IsAbs(config.Root) {
			config.Root = filepath.Join(filepath.Dir(path), config.Root)
		}
	}
	return config, nil
}

// WithDefaults returns a copy of the config with the connection settings and
// root filled in. The remaining zero fields are defaulted by the components
// that use them.
func (n Node) WithDefaults() Node {
	if n.Host == "" {
		n.Host = DefaultHost
	}
	if n.Port == 0 {
		n.Port = DefaultPort
	}
	if n.Root == "" {
		switch n.Role {
		case RoleServer:
			n.Root = ServerRoot
		case RoleClient:
			n.Root = ClientRoot
		}
	}
	return n
}

// Validate checks that the config describes a node that can run.
func (n Node) Validate() error {
	switch n.Role {
	case RoleServer, RoleClient:
	case "":
		return errors.NewFriendlyError("The node type is required. "+
			"Please set it to %q or %q.", RoleServer, RoleClient)
	default:
		return errors.NewFriendlyError("Unknown node type %q. "+
			"Please set it to %q or %q.", n.Role, RoleServer, RoleClient)
	}

	if n.Port < 0 || n.Port > 65535 {
		return errors.NewFriendlyError("Invalid port %d.", n.Port)
	}

	if n.Workers < 0 {
		return errors.NewFriendlyError(
			"The number of workers must be positive, got %d.", n.Workers)
	}
	return nil
}

// Address returns the address the server listens on.
func (n Node) Address() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// Duration is a time.Duration that's written as a string, such as "1s" or
// "100ms", in config files.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("durations must be strings such as \"1s\", got %s", b)
	}

	parsed, err := time.ParseDuration(str)
	if err != nil {
		return errors.WithContext(err, "parse duration")
	}
	*d = Duration(parsed)
	return nil
}
