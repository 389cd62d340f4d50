package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore/diskvstore"
	"git.ruekov.eu/ruakij/partStreamer/internal/artifactstore/stubstore"
	"git.ruekov.eu/ruakij/partStreamer/internal/filehealth"
	"git.ruekov.eu/ruakij/partStreamer/internal/metrics"
	"git.ruekov.eu/ruakij/partStreamer/internal/presentation"
	"git.ruekov.eu/ruakij/partStreamer/internal/presentation/fusemount"
	"git.ruekov.eu/ruakij/partStreamer/internal/presentation/webdav"
	"git.ruekov.eu/ruakij/partStreamer/internal/service/artifactservice"
	"git.ruekov.eu/ruakij/partStreamer/internal/trigger"
	"git.ruekov.eu/ruakij/partStreamer/internal/trigger/folderwatcher"
	"git.ruekov.eu/ruakij/partStreamer/pkg/shutdownmanager"
)

var logger = slog.With("Module", "Main")

var ErrNoPresenter = errors.New("neither webdav nor mount configured")

type cmdServe struct {
	global *cmdGlobal
}

func (c *cmdServe) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "serve"
	cmd.Short = "Watch a folder and present its split files over WebDAV and FUSE"
	cmd.Long = `Watches FOLDER_WATCHER_PATH for split files and presents every group of parts as one file.
Configuration is read from the environment.`
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run
	return cmd
}

func (c *cmdServe) Run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := loadConfig(ctx, envconfig.OsLookuper())
	if err != nil {
		return err
	}
	if err := c.global.setupLogging(config.Logging.Level); err != nil {
		return err
	}
	if config.Webdav.Address == "" && config.Mount.Path == "" {
		return ErrNoPresenter
	}

	blacklist, err := config.Artifact.compileBlacklist()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var presenters []presentation.Presenter
	var webdavFS *webdav.FS
	if config.Webdav.Address != "" {
		webdavFS = webdav.NewFS()
		presenters = append(presenters, webdavFS)
	}
	var mountFS *fusemount.FileSystem
	if config.Mount.Path != "" {
		mountFS = fusemount.Setup()
		presenters = append(presenters, mountFS)
	}

	logger.Info("Watching folder", "path", config.FolderWatcher.Path)
	watcher := folderwatcher.NewFolderWatcher(config.FolderWatcher.Path)

	var store artifactstore.Store = stubstore.NewStubStore()
	if config.Store.Path != "" {
		store = diskvstore.NewDiskvStore(config.Store.Path)
	} else {
		logger.Warn("STORE_PATH is empty, known artifacts are not persisted")
	}

	service := artifactservice.NewService(
		store,
		presenters,
		[]trigger.Trigger{watcher},
		artifactservice.Options{
			Blacklist:       blacklist,
			ExpandArchives:  config.Artifact.ExpandArchives,
			ArchivePassword: config.Artifact.ArchivePassword,
		},
	)
	service.SetChecker(filehealth.NewDefaultChecker(filehealth.CheckerConfig{
		TryReadBytes:      config.Health.TryReadBytes,
		TryReadPercentage: config.Health.TryReadPercentage,
		CheckBoundaries:   config.Health.CheckBoundaries,
	}))
	service.SetMetrics(metrics.New(reg))

	if err := service.Init(); err != nil {
		return fmt.Errorf("failed initializing artifact service: %w", err)
	}
	watcher.Init()

	sm, serviceCtx := shutdownmanager.NewShutdownManager(ctx, config.Shutdown.Timeout, func() {
		logger.Error("Services did not stop in time")
	})

	if webdavFS != nil {
		sm.Go("webdav", func() error {
			return webdav.Listen(serviceCtx, webdavFS, webdav.Options{
				Address:  config.Webdav.Address,
				Username: config.Webdav.Username,
				Password: config.Webdav.Password,
			})
		})
	}
	if mountFS != nil {
		sm.Go("mount", func() error {
			return mountFS.Mount(serviceCtx, config.Mount.Path, config.Mount.Options)
		})
	}
	if config.Debug.Address != "" {
		sm.Go("debug", func() error {
			return listenDebug(serviceCtx, config.Debug.Address, reg)
		})
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	watcher.StopWatching()
	if err := service.Close(); err != nil {
		logger.Error("Failed closing artifact service", "err", err)
	}
	return sm.Shutdown()
}
