package ops

import (
	"net"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/podsh/pkg/config"
	"github.com/nicklasfrahm/podsh/pkg/kube"
	"github.com/nicklasfrahm/podsh/pkg/sshx"
)

// k3sPort is the port of the k3s API server.
const k3sPort = "6443"

// Connect establishes the connection to the cluster. The kubeconfig is
// downloaded from the k3s server if a remote is configured. Otherwise
// the local kubeconfig is used.
func Connect(cfg *config.Config, logger *zerolog.Logger) (*kube.Connection, error) {
	if cfg.Remote == nil {
		logger.Debug().Str("path", cfg.KubeConfig).Msg("Loading kubeconfig")
		return kube.LoadKubeConfig(cfg.KubeConfig)
	}

	data, err := downloadKubeConfig(cfg.Remote, logger)
	if err != nil {
		return nil, err
	}

	return kube.ParseKubeConfig(data, remoteServer(cfg.Remote))
}

func downloadKubeConfig(remote *config.Remote, logger *zerolog.Logger) ([]byte, error) {
	var proxy *sshx.Client
	if remote.SSHProxy != nil && remote.SSHProxy.Host != "" {
		var err error
		if proxy, err = sshx.NewClient(remote.SSHProxy, sshx.WithLogger(logger)); err != nil {
			return nil, errors.Wrap(err, "cannot connect to proxy")
		}
		defer proxy.Close()
	}

	client, err := sshx.NewClient(&remote.SSH, sshx.WithLogger(logger), sshx.WithProxy(proxy))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s", remote.SSH.Host)
	}
	defer client.Close()

	logger.Info().Str("host", remote.SSH.Host).Msg("Downloading kubeconfig")

	return client.ReadFile(remote.Path)
}

// remoteServer returns the API server URL for a downloaded kubeconfig,
// as k3s points it to the loopback address.
func remoteServer(remote *config.Remote) string {
	if remote.Server != "" {
		return remote.Server
	}

	return (&url.URL{
		Scheme: "https",
		Host:   net.JoinHostPort(remote.SSH.Host, k3sPort),
	}).String()
}
