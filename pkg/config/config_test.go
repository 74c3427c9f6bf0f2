package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/nicklasfrahm/podsh/pkg/sshx"
)

func testFs(t *testing.T, content string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, DefaultPath, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(): %v", err)
	}
	return fs
}

func boolPtr(b bool) *bool {
	return &b
}

func TestLoad(t *testing.T) {
	fs := testFs(t, `
namespace: tools
image: busybox
tty: false
ready-timeout: 30s
remote:
  ssh:
    host: 10.0.0.1
    user: ubuntu
`)

	cases := map[string]struct {
		path      string
		overrides *Config
		env       string
		want      func(*Config)
	}{
		"Defaults": {
			path: "missing.yml",
			want: func(*Config) {},
		},
		"File": {
			path: DefaultPath,
			want: func(c *Config) {
				c.Namespace = "tools"
				c.Image = "busybox"
				c.TTY = boolPtr(false)
				c.ReadyTimeout = time.Second * 30
				c.Remote = &Remote{
					SSH:  sshx.Config{Host: "10.0.0.1", User: "ubuntu"},
					Path: DefaultK3sKubeConfig,
				}
			},
		},
		"Overrides": {
			path: DefaultPath,
			overrides: &Config{
				Namespace:      "ops",
				Shell:          []string{"bash", "-l"},
				TTY:            boolPtr(true),
				SessionTimeout: time.Minute,
			},
			want: func(c *Config) {
				c.Namespace = "ops"
				c.Image = "busybox"
				c.Shell = []string{"bash", "-l"}
				c.ReadyTimeout = time.Second * 30
				c.SessionTimeout = time.Minute
				c.Remote = &Remote{
					SSH:  sshx.Config{Host: "10.0.0.1", User: "ubuntu"},
					Path: DefaultK3sKubeConfig,
				}
			},
		},
		"NamespaceFromEnv": {
			env:  "from-env",
			want: func(c *Config) { c.Namespace = "from-env" },
		},
		"NamespaceEnvIgnoredWhenConfigured": {
			path: DefaultPath,
			env:  "from-env",
			want: func(c *Config) {
				c.Namespace = "tools"
				c.Image = "busybox"
				c.TTY = boolPtr(false)
				c.ReadyTimeout = time.Second * 30
				c.Remote = &Remote{
					SSH:  sshx.Config{Host: "10.0.0.1", User: "ubuntu"},
					Path: DefaultK3sKubeConfig,
				}
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(NamespaceEnv, tc.env)

			want := Defaults()
			tc.want(want)

			got, err := LoadFs(fs, tc.path, tc.overrides)
			if err != nil {
				t.Fatalf("Load(...): %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Load(...): -want, +got:\n%s", diff)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	fs := testFs(t, "image: [unterminated")

	if _, err := LoadFs(fs, DefaultPath, nil); err == nil {
		t.Error("Load(...): want error for invalid YAML")
	}
}
