// Package tftp mirrors the content root over TFTP, read only.
package tftp

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	tftp "github.com/pin/tftp/v3"
)

func serveFile(root billy.Filesystem, name string, rf io.ReaderFrom) (int64, error) {
	st, err := root.Stat(name)
	if err != nil {
		return 0, err
	}
	if st.IsDir() {
		return 0, fmt.Errorf("%s is a directory", name)
	}
	f, err := root.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if ot, ok := rf.(tftp.OutgoingTransfer); ok {
		ot.SetSize(st.Size())
	}
	return rf.ReadFrom(f)
}

func peer(t any) string {
	type remote interface{ RemoteAddr() net.UDPAddr }
	if r, ok := t.(remote); ok {
		addr := r.RemoteAddr()
		return addr.String()
	}
	return "-"
}

// StartTFTPServer binds addr and serves read requests for files under root.
// Write requests are refused.
func StartTFTPServer(addr string, root billy.Filesystem, logger *slog.Logger) (*tftp.Server, net.Addr, error) {
	if addr == "" {
		addr = ":69"
	}
	readHandler := func(filename string, rf io.ReaderFrom) error {
		name := path.Clean("/" + strings.TrimSpace(filename))
		n, err := serveFile(root, name, rf)
		if err != nil {
			logger.Warn(fmt.Sprintf("%s read %s failed: %v", peer(rf), name, err))
			return err
		}
		logger.Info(fmt.Sprintf("%s read %s (%d bytes)", peer(rf), name, n))
		return nil
	}
	writeHandler := func(filename string, wt io.WriterTo) error {
		logger.Warn(fmt.Sprintf("%s write %s refused", peer(wt), filename))
		return billy.ErrReadOnly
	}

	srv := tftp.NewServer(readHandler, writeHandler)
	srv.SetTimeout(5 * time.Second)

	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		logger.Info(fmt.Sprintf("TFTP server listening on %s, root=%q", conn.LocalAddr(), root.Root()))
		if err := srv.Serve(conn); err != nil {
			logger.Error(fmt.Sprintf("TFTP server error: %v", err))
		}
	}()
	return srv, conn.LocalAddr(), nil
}
