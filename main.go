package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"static-devserver/config"
	"static-devserver/contentroot"
	httpx "static-devserver/http"
	"static-devserver/logging"
	"static-devserver/nfs"
	"static-devserver/tftp"
	"static-devserver/utils"
)

func parseFlags(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("static-devserver", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML config file (optional)")
	root := fs.String("root", ".", "directory to serve")
	logFile := fs.String("log", "server.log", "log file, appended to")
	logLevel := fs.String("log-level", "info", "debug, info, warning or error")
	noColor := fs.Bool("no-color", false, "disable coloured levels on the console")
	tftpAddr := fs.String("tftp", "", "also serve the root read-only over TFTP on this address")
	nfsAddr := fs.String("nfs", "", "also export the root read-only over NFS on this address")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if fs.NArg() > 0 {
		return config.Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	// Flags given on the command line win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *root
		case "log":
			cfg.LogFile = *logFile
		case "log-level":
			cfg.LogLevel = *logLevel
		case "no-color":
			cfg.Color = !*noColor
		case "tftp":
			cfg.TFTP = config.ExportConfig{Enabled: *tftpAddr != "", Addr: *tftpAddr}
		case "nfs":
			cfg.NFS = config.ExportConfig{Enabled: *nfsAddr != "", Addr: *nfsAddr}
		}
	})
	return cfg, cfg.Validate()
}

// serve runs until ctx is done, then closes every listener without draining.
func serve(ctx context.Context, cfg config.Config, addr string, console io.Writer) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.New(logging.Options{File: logFile, Console: console, Level: level, Color: cfg.Color})

	root, err := contentroot.New(cfg.Root)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	srv, ln, err := httpx.StartHTTPServer(addr, httpx.NewHandler(contentroot.HTTP(root), logger), logger)
	if err != nil {
		logger.Error(fmt.Sprintf("start http failure: %v", err))
		return err
	}
	defer srv.Close()
	url, err := utils.LocalURL(ln.Addr().String())
	if err != nil {
		return err
	}
	logger.Info("Server running at " + url)
	logger.Debug("serving " + root.Root())

	if cfg.TFTP.Enabled {
		tsrv, _, err := tftp.StartTFTPServer(cfg.TFTP.Addr, contentroot.ReadOnly(root), logger.With("subsystem", "tftp"))
		if err != nil {
			logger.Error(fmt.Sprintf("start tftp failure: %v", err))
			return err
		}
		defer tsrv.Shutdown()
	}
	if cfg.NFS.Enabled {
		nln, err := nfs.StartNFSServer(cfg.NFS.Addr, root, logger.With("subsystem", "nfs"))
		if err != nil {
			logger.Error(fmt.Sprintf("start nfs failure: %v", err))
			return err
		}
		defer nln.Close()
	}

	logger.Info("Press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info("Server stopped")
	return nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, httpx.Addr, os.Stdout); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}
