package sshx

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Config is a flat configuration for an SSH connection.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	KeyFile     string `yaml:"key-file"`
	Key         string `yaml:"key"`
	Passphrase  string `yaml:"passphrase"`
	Fingerprint string `yaml:"fingerprint"`
}

// Address returns the address of the host including the port.
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = 22
	}

	return net.JoinHostPort(c.Host, fmt.Sprint(port))
}

// Client is an augmented SSH client.
type Client struct {
	*Options
	*ssh.Client
}

// NewClient creates a new SSH client based on an SSH configuration
// and connects to it.
func NewClient(config *Config, options ...Option) (*Client, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	client := &Client{
		Options: opts,
	}

	// Configure authentication and host key verification.
	clientConfig, err := client.clientConfig(config)
	if err != nil {
		return nil, err
	}
	address := config.Address()

	client.Logger.Debug().Str("address", address).Msg("Connecting via SSH")

	if client.Proxy != nil {
		// Tunnel the connection through the proxy host.
		netConn, err := client.Proxy.Client.Dial("tcp", address)
		if err != nil {
			return nil, errors.Wrap(err, "cannot dial via proxy")
		}

		targetConn, channel, req, err := ssh.NewClientConn(netConn, address, clientConfig)
		if err != nil {
			return nil, errors.Wrap(err, "cannot connect via proxy")
		}

		client.Client = ssh.NewClient(targetConn, channel, req)
	} else {
		// Create a new client.
		if client.Client, err = ssh.Dial("tcp", address, clientConfig); err != nil {
			return nil, errors.Wrap(err, "cannot connect")
		}
	}

	return client, nil
}

// clientConfig creates a client config that is compatible with x/crypto/ssh.
func (client *Client) clientConfig(config *Config) (*ssh.ClientConfig, error) {
	// Set default connection options.
	user := config.User
	if user == "" {
		user = "root"
	}

	auth, err := client.authMethod(config)
	if err != nil {
		return nil, err
	}

	// Configure host key verification.
	return &ssh.ClientConfig{
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: client.hostKeyCallback(config),
		User:            user,
		Timeout:         client.Timeout,
	}, nil
}

// authMethod selects the authentication method. A private key always
// takes precedence over a password and a key that is specified directly
// takes precedence over a key file.
func (client *Client) authMethod(config *Config) (ssh.AuthMethod, error) {
	// Load the private key. A key that is specified directly takes
	// precedence over a key file.
	key := config.Key
	if key == "" && config.KeyFile != "" {
		// Resolve the home directory if necessary.
		path, err := expandHome(config.KeyFile)
		if err != nil {
			return nil, err
		}

		keyBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read key file")
		}
		key = string(keyBytes)
	}

	if key != "" {
		var signer ssh.Signer
		var err error
		if config.Passphrase != "" {
			// Use passphrase to decrypt the private key.
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(key), []byte(config.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(key))
		}
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse private key")
		}

		return ssh.PublicKeys(signer), nil
	}

	// Fall back to password authentication.
	if config.Password != "" {
		client.Logger.Warn().Msg("Using password authentication is insecure!")
		client.Logger.Warn().Msg("Please consider using public key authentication!")
		return ssh.Password(config.Password), nil
	}

	return nil, errors.New("no authentication method specified")
}

// hostKeyCallback verifies the host key against the configured
// fingerprint. Without a fingerprint, every host key is accepted.
func (client *Client) hostKeyCallback(config *Config) ssh.HostKeyCallback {
	if config.Fingerprint == "" {
		client.Logger.Warn().Msg("Skipping host key verification is insecure!")
		client.Logger.Warn().Msg("This allows for person-in-the-middle attacks!")
		client.Logger.Warn().Msg("Please consider using fingerprint verification!")
		return ssh.InsecureIgnoreHostKey()
	}

	return func(_ string, _ net.Addr, pubKey ssh.PublicKey) error {
		// Compare the fingerprint of the server to the configured one.
		fingerprint := ssh.FingerprintSHA256(pubKey)
		if config.Fingerprint != fingerprint {
			return errors.Errorf("fingerprint mismatch: server fingerprint: %s", fingerprint)
		}
		return nil
	}
}

// expandHome replaces a leading tilde with the home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, path[1:]), nil
}
