// Package config loads the configuration of podsh. Values are taken
// from the defaults, the configuration file and the command line, with
// later sources taking precedence.
package config

import (
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/nicklasfrahm/podsh/pkg/sshx"
)

const (
	// Program is used to configure the name of the configuration file.
	Program = "podsh"
	// DefaultPath is the default path of the configuration file.
	DefaultPath = Program + ".yml"
	// NamespaceEnv selects the namespace if neither the file
	// nor the command line does.
	NamespaceEnv = "NAMESPACE"
	// DefaultK3sKubeConfig is where k3s stores the admin kubeconfig.
	DefaultK3sKubeConfig = "/etc/rancher/k3s/k3s.yaml"
)

// Config describes a shell session and how to reach the cluster.
type Config struct {
	// Namespace is the namespace of the pod. If empty, the
	// namespace of the current kubeconfig context is used.
	Namespace string `yaml:"namespace"`
	// Name is the name of the pod. A name is generated if empty.
	Name      string   `yaml:"name"`
	Image     string   `yaml:"image"`
	Command   []string `yaml:"command"`
	Container string   `yaml:"container"`

	// Shell is the command that is attached to.
	Shell []string `yaml:"shell"`
	TTY   *bool    `yaml:"tty"`

	ReadyTimeout   time.Duration `yaml:"ready-timeout"`
	SessionTimeout time.Duration `yaml:"session-timeout"`
	CleanupTimeout time.Duration `yaml:"cleanup-timeout"`

	// GracePeriod is the grace period in seconds for deleting
	// the pod. The cluster default applies if unset.
	GracePeriod *int64 `yaml:"grace-period"`

	// TolerateExisting attaches to a pod that already exists
	// instead of failing. The pod is deleted afterwards.
	TolerateExisting *bool `yaml:"tolerate-existing"`

	// KubeConfig is the path to a local kubeconfig. If empty,
	// the default loading rules apply.
	KubeConfig string `yaml:"kubeconfig"`

	// Remote retrieves the kubeconfig from a k3s server via SSH.
	Remote *Remote `yaml:"remote"`
}

// Remote describes a k3s server that the kubeconfig is downloaded from.
type Remote struct {
	SSH      sshx.Config  `yaml:"ssh"`
	SSHProxy *sshx.Config `yaml:"ssh-proxy"`
	// Path is the location of the kubeconfig on the server.
	Path string `yaml:"path"`
	// Server replaces the API server URL of the kubeconfig.
	// Defaults to the SSH host on port 6443.
	Server string `yaml:"server"`
}

// Defaults returns the default configuration.
func Defaults() *Config {
	tty := true
	tolerate := false

	return &Config{
		Image:            "alpine",
		Command:          []string{"tail", "-f", "/dev/null"},
		Shell:            []string{"sh"},
		TTY:              &tty,
		ReadyTimeout:     time.Second * 10,
		SessionTimeout:   time.Minute * 15,
		CleanupTimeout:   time.Second * 30,
		TolerateExisting: &tolerate,
	}
}

// Load reads the configuration file and merges it over the defaults.
// The overrides are merged last. A missing file is not an error.
func Load(path string, overrides *Config) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path, overrides)
}

// LoadFs is like Load but reads the configuration file from fs.
func LoadFs(fs afero.Fs, path string, overrides *Config) (*Config, error) {
	config := Defaults()

	file, err := read(fs, path)
	if err != nil {
		return nil, err
	}

	if file != nil {
		if err := mergo.Merge(config, file, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return nil, errors.Wrap(err, "cannot merge configuration file")
		}
	}

	if overrides != nil {
		if err := mergo.Merge(config, overrides, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return nil, errors.Wrap(err, "cannot merge overrides")
		}
	}

	if config.Namespace == "" {
		config.Namespace = os.Getenv(NamespaceEnv)
	}

	if config.Remote != nil && config.Remote.Path == "" {
		config.Remote.Path = DefaultK3sKubeConfig
	}

	return config, nil
}

func read(fs afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "cannot read configuration file")
	}

	config := new(Config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", path)
	}

	return config, nil
}
