package sshx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/ssh"
)

func TestCmdString(t *testing.T) {
	cases := map[string]struct {
		cmd  Cmd
		want string
	}{
		"Plain": {
			cmd:  Cmd{Cmd: "cat /etc/hostname"},
			want: "cat /etc/hostname",
		},
		"Shell": {
			cmd:  Cmd{Cmd: "echo $HOME", Shell: true},
			want: "sh -c 'echo $HOME'",
		},
		"ShellQuotes": {
			cmd:  Cmd{Cmd: "echo 'hi'", Shell: true},
			want: `sh -c 'echo '"'"'hi'"'"''`,
		},
		"Env": {
			cmd:  Cmd{Cmd: "env", Env: map[string]string{"B": "2", "A": "1"}},
			want: "env A='1' B='2' sh -c 'env'",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.cmd.String()); diff != "" {
				t.Errorf("String(): -want, +got:\n%s", diff)
			}
		})
	}
}

func TestConfigAddress(t *testing.T) {
	cases := map[string]struct {
		config Config
		want   string
	}{
		"DefaultPort": {config: Config{Host: "10.0.0.1"}, want: "10.0.0.1:22"},
		"CustomPort":  {config: Config{Host: "node", Port: 2222}, want: "node:2222"},
		"IPv6":        {config: Config{Host: "::1"}, want: "[::1]:22"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := tc.config.Address(); got != tc.want {
				t.Errorf("Address(): want %q, got %q", tc.want, got)
			}
		})
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	opts, err := GetDefaultOptions().Apply()
	if err != nil {
		t.Fatalf("Apply(): %v", err)
	}
	return &Client{Options: opts}
}

func testKey(t *testing.T) (ssh.PublicKey, []byte) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey(): %v", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey(): %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("NewPublicKey(): %v", err)
	}

	return sshPub, pem.EncodeToMemory(block)
}

func testEncryptedKey(t *testing.T, passphrase string) []byte {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey(): %v", err)
	}

	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	if err != nil {
		t.Fatalf("MarshalPrivateKeyWithPassphrase(): %v", err)
	}

	return pem.EncodeToMemory(block)
}

func TestClientConfig(t *testing.T) {
	_, key := testKey(t)
	encrypted := testEncryptedKey(t, "hunter2")

	keyFile := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyFile, key, 0o600); err != nil {
		t.Fatalf("WriteFile(): %v", err)
	}

	cases := map[string]struct {
		config   Config
		wantUser string
		wantErr  bool
	}{
		"Key": {
			config:   Config{Key: string(key)},
			wantUser: "root",
		},
		"KeyFile": {
			config:   Config{KeyFile: keyFile, User: "ubuntu"},
			wantUser: "ubuntu",
		},
		"KeyWithPassphrase": {
			config:   Config{Key: string(encrypted), Passphrase: "hunter2"},
			wantUser: "root",
		},
		"KeyWithWrongPassphrase": {
			config:  Config{Key: string(encrypted), Passphrase: "wrong"},
			wantErr: true,
		},
		"KeyTakesPrecedenceOverMissingKeyFile": {
			config:   Config{Key: string(key), KeyFile: filepath.Join(t.TempDir(), "missing")},
			wantUser: "root",
		},
		"Password": {
			config:   Config{Password: "secret"},
			wantUser: "root",
		},
		"InvalidKey": {
			config:  Config{Key: "not a key"},
			wantErr: true,
		},
		"MissingKeyFile": {
			config:  Config{KeyFile: filepath.Join(t.TempDir(), "missing")},
			wantErr: true,
		},
		"NoAuth": {
			config:  Config{},
			wantErr: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := newTestClient(t).clientConfig(&tc.config)
			if tc.wantErr {
				if err == nil {
					t.Fatal("clientConfig(...): want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("clientConfig(...): %v", err)
			}
			if got.User != tc.wantUser {
				t.Errorf("clientConfig(...): want user %q, got %q", tc.wantUser, got.User)
			}
			if len(got.Auth) != 1 {
				t.Errorf("clientConfig(...): want one auth method, got %d", len(got.Auth))
			}
		})
	}
}

func TestHostKeyCallback(t *testing.T) {
	pub, _ := testKey(t)
	other, _ := testKey(t)

	client := newTestClient(t)
	callback := client.hostKeyCallback(&Config{Fingerprint: ssh.FingerprintSHA256(pub)})

	if err := callback("node:22", nil, pub); err != nil {
		t.Errorf("callback(...): want match, got %v", err)
	}
	if err := callback("node:22", nil, other); err == nil {
		t.Error("callback(...): want fingerprint mismatch")
	}

	insecure := client.hostKeyCallback(&Config{})
	if err := insecure("node:22", nil, other); err != nil {
		t.Errorf("callback(...): want any key accepted, got %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir(): %v", err)
	}

	cases := map[string]struct {
		path string
		want string
	}{
		"Tilde": {
			path: "~/.ssh/id_ed25519",
			want: filepath.Join(home, ".ssh", "id_ed25519"),
		},
		"Absolute": {
			path: "/etc/ssh/id_ed25519",
			want: "/etc/ssh/id_ed25519",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := expandHome(tc.path)
			if err != nil {
				t.Fatalf("expandHome(...): %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("expandHome(...): -want, +got:\n%s", diff)
			}
		})
	}
}
