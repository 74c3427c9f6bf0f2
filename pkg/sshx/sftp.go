package sshx

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
)

// Download copies a remote file to w via SFTP.
func (client *Client) Download(path string, w io.Writer) error {
	sc, err := sftp.NewClient(client.Client)
	if err != nil {
		return errors.Wrap(err, "cannot start sftp")
	}
	defer sc.Close()

	file, err := sc.Open(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", path)
	}
	defer file.Close()

	_, err = file.WriteTo(w)
	return errors.Wrapf(err, "cannot download %s", path)
}

// ReadFile reads a remote file. Files that the login user may not read
// via SFTP are read with sudo instead.
func (client *Client) ReadFile(path string) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := client.Download(path, buf)
	if err == nil {
		return buf.Bytes(), nil
	}

	client.Logger.Debug().Err(err).Msg("Falling back to sudo")

	buf.Reset()
	if err := client.Do(Cmd{Cmd: "sudo cat " + quote(path), Stdout: buf}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
