package kube

import (
	"github.com/pkg/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// Connection bundles what is needed to talk to a cluster.
type Connection struct {
	Config    *rest.Config
	Client    kubernetes.Interface
	Namespace string
}

// LoadKubeConfig loads the kubeconfig using the default loading rules.
// An explicit path takes precedence over $KUBECONFIG and ~/.kube/config.
func LoadKubeConfig(path string) (*Connection, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = path

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{})

	return connect(clientConfig)
}

// ParseKubeConfig parses a kubeconfig. If server is not empty, it
// replaces the API server URL of the current context's cluster.
func ParseKubeConfig(data []byte, server string) (*Connection, error) {
	config, err := clientcmd.Load(data)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse kubeconfig")
	}

	if server != "" {
		if err := setServer(config, server); err != nil {
			return nil, err
		}
	}

	return connect(clientcmd.NewDefaultClientConfig(*config, &clientcmd.ConfigOverrides{}))
}

// setServer rewrites the server of the current context's cluster.
func setServer(config *clientcmdapi.Config, server string) error {
	context, ok := config.Contexts[config.CurrentContext]
	if !ok {
		return errors.Errorf("current context %q not found", config.CurrentContext)
	}

	cluster, ok := config.Clusters[context.Cluster]
	if !ok {
		return errors.Errorf("cluster %q not found", context.Cluster)
	}

	cluster.Server = server

	return nil
}

func connect(clientConfig clientcmd.ClientConfig) (*Connection, error) {
	config, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, errors.Wrap(err, "cannot load kubeconfig")
	}

	namespace, _, err := clientConfig.Namespace()
	if err != nil {
		return nil, errors.Wrap(err, "cannot determine namespace")
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create client")
	}

	return &Connection{
		Config:    config,
		Client:    client,
		Namespace: namespace,
	}, nil
}
