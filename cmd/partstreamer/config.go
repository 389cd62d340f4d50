package main

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type WebdavConfig struct {
	Address  string `env:"WEBDAV_ADDRESS, default=:8080"` // Address for WebDAV server; Disabled when empty
	Username string `env:"WEBDAV_USERNAME"`               // Username for WebDAV basic auth; Authentication disabled when unset
	Password string `env:"WEBDAV_PASSWORD"`               // Password for WebDAV basic auth
}

type MountConfig struct {
	Path    string   `env:"MOUNT_PATH"`    // Path for FUSE mount; Disabled when unset
	Options []string `env:"MOUNT_OPTIONS"` // Additional Options for FUSE mount; See mount.fuse3 Manpage for more information
}

type FolderWatcherConfig struct {
	Path string `env:"FOLDER_WATCHER_PATH, default=.watch"` // Folder holding the parts
}

type StoreConfig struct {
	Path string `env:"STORE_PATH, default=.store"` // Folder where known artifacts are persisted; Persistence disabled when empty
}

type ArtifactConfig struct {
	Blacklist       []string `env:"ARTIFACT_BLACKLIST"`                     // Regex-blacklist, applied on every file presented; includes files from archives
	ExpandArchives  bool     `env:"ARTIFACT_EXPAND_ARCHIVES, default=true"` // Present files inside 7z archives next to the archive
	ArchivePassword string   `env:"ARTIFACT_ARCHIVE_PASSWORD"`              // Password for encrypted 7z archives
}

type HealthConfig struct {
	TryReadBytes      int64   `env:"HEALTH_TRY_READ_BYTES, default=1"`      // Bytes to try to read when adding files
	TryReadPercentage float32 `env:"HEALTH_TRY_READ_PERCENTAGE, default=0"` // Percentage of file to try to read when adding files
	CheckBoundaries   bool    `env:"HEALTH_CHECK_BOUNDARIES, default=true"` // Read the last byte of every part when adding files
}

type DebugConfig struct {
	Address string `env:"DEBUG_ADDRESS"` // Address for statsviz and prometheus metrics; Disabled when unset
}

type ShutdownConfig struct {
	Timeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"` // Time services get to stop before exiting anyway
}

type LoggingConfig struct {
	Level slog.Level `env:"LOGLEVEL, default=INFO"` // Logging level, one of {DEBUG, INFO, WARN, ERROR}
}

type Config struct {
	Webdav        WebdavConfig
	Mount         MountConfig
	FolderWatcher FolderWatcherConfig
	Store         StoreConfig
	Artifact      ArtifactConfig
	Health        HealthConfig
	Debug         DebugConfig
	Shutdown      ShutdownConfig
	Logging       LoggingConfig
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var config Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed processing config: %w", err)
	}
	return &config, nil
}

func (c *ArtifactConfig) compileBlacklist() ([]*regexp.Regexp, error) {
	blacklist := make([]*regexp.Regexp, 0, len(c.Blacklist))
	for _, expr := range c.Blacklist {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist entry %q: %w", expr, err)
		}
		blacklist = append(blacklist, re)
	}
	return blacklist, nil
}
