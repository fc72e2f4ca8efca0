package sftpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type Config struct {
	Host      string
	Port      int
	User      string
	Pass      string
	RemoteDir string

	// KnownHostsFile enables host key checking. Empty accepts any host key.
	KnownHostsFile string

	Logger *zap.Logger
}

// UploadFile reads a local file and uploads it as remoteFileName.
func UploadFile(ctx context.Context, cfg Config, localPath string, remoteFileName string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	return Upload(ctx, cfg, remoteFileName, data)
}

// Upload writes data to RemoteDir/name, trying each strategy of
// DefaultStrategies in order until one succeeds.
func Upload(ctx context.Context, cfg Config, name string, data []byte) error {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return fmt.Errorf("sftp: missing env SFTP_HOST / SFTP_USER / SFTP_PASS")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	cb := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		var err error
		cb, err = knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return fmt.Errorf("sftp: known_hosts: %w", err)
		}
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: cb,
		Timeout:         20 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	// ctx para timeout/cancel
	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		return fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("sftp: dial error: %w", r.err)
		}
		sshClient = r.client
	}
	defer sshClient.Close()

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer sftpCli.Close()

	return put(sftpFS{sftpCli}, cfg.RemoteDir, name, data, DefaultStrategies, cfg.Logger)
}

// remoteFS is the part of the SFTP client the strategies use.
type remoteFS interface {
	MkdirAll(dir string) error
	Create(p string) (io.WriteCloser, error)
	OpenFile(p string, flag int) (io.WriteCloser, error)
	PosixRename(oldname, newname string) error
	Remove(p string) error
}

type sftpFS struct{ c *sftp.Client }

func (s sftpFS) MkdirAll(dir string) error { return s.c.MkdirAll(dir) }

func (s sftpFS) Create(p string) (io.WriteCloser, error) { return s.c.Create(p) }

func (s sftpFS) OpenFile(p string, flag int) (io.WriteCloser, error) { return s.c.OpenFile(p, flag) }

func (s sftpFS) PosixRename(oldname, newname string) error { return s.c.PosixRename(oldname, newname) }

func (s sftpFS) Remove(p string) error { return s.c.Remove(p) }

// Strategy is one way of getting a file onto the server.
type Strategy struct {
	Name string
	Put  func(fs remoteFS, remotePath string, data []byte) error
}

// DefaultStrategies: some servers refuse Create on existing files, some
// refuse renames; the last one overwrites in place.
var DefaultStrategies = []Strategy{
	{Name: "direct", Put: putDirect},
	{Name: "temp-rename", Put: putTempRename},
	{Name: "truncate", Put: putTruncate},
}

func put(fs remoteFS, dir, name string, data []byte, strategies []Strategy, logger *zap.Logger) error {
	// Asegura dir destino
	if err := fs.MkdirAll(dir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", dir, err)
	}
	remotePath := path.Join(dir, name)

	var errs []error
	for _, s := range strategies {
		err := s.Put(fs, remotePath, data)
		if err == nil {
			logger.Info("sftp upload done", zap.String("path", remotePath), zap.String("strategy", s.Name), zap.Int("bytes", len(data)))
			return nil
		}
		logger.Warn("sftp upload strategy failed", zap.String("strategy", s.Name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return fmt.Errorf("sftp: upload %s failed: %w", remotePath, errors.Join(errs...))
}

func putDirect(fs remoteFS, remotePath string, data []byte) error {
	dst, err := fs.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}
	return copyAndClose(dst, data)
}

func putTempRename(fs remoteFS, remotePath string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp-%d", remotePath, time.Now().UnixNano())
	dst, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := copyAndClose(dst, data); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	if err := fs.PosixRename(tmp, remotePath); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func putTruncate(fs remoteFS, remotePath string, data []byte) error {
	dst, err := fs.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("open remote file: %w", err)
	}
	return copyAndClose(dst, data)
}

func copyAndClose(dst io.WriteCloser, data []byte) error {
	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		_ = dst.Close()
		return fmt.Errorf("upload copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close remote file: %w", err)
	}
	return nil
}
