// Package nfs exports the content root over NFSv3, read only.
package nfs

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/go-git/go-billy/v5"
	gonfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"

	"static-devserver/contentroot"
)

// handleCacheSize bounds the number of file handles kept by the export.
const handleCacheSize = 1024

// StartNFSServer binds addr and exports root on it. The mount protocol is
// served on the same port.
func StartNFSServer(addr string, root billy.Filesystem, logger *slog.Logger) (net.Listener, error) {
	if addr == "" {
		addr = ":2049"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	handler := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(contentroot.ReadOnly(root)), handleCacheSize)
	go func() {
		logger.Info(fmt.Sprintf("NFS export of %q listening on %s", root.Root(), ln.Addr()))
		if err := gonfs.Serve(ln, handler); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error(fmt.Sprintf("NFS server error: %v", err))
		}
	}()
	return ln, nil
}
