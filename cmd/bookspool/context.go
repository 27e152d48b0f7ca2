package main

import (
	"log/slog"
	"strings"
	"sync"

	"bookspool/internal/catalog"
	"bookspool/internal/config"
	"bookspool/internal/drive"
	"bookspool/internal/library"
	"bookspool/internal/logging"
	"bookspool/internal/position"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		logger, logErr := logging.NewFromConfig(cfg)
		if logErr != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger, nil
}

func (c *commandContext) openCatalog() (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg)
}

func (c *commandContext) openPositions() (*position.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return position.Open(cfg)
}

func (c *commandContext) driveClient() (*drive.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return drive.NewClient(cfg), nil
}

func (c *commandContext) libraryService(store *catalog.Store) (*library.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := c.driveClient()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return library.NewService(cfg, client, store, logger), nil
}
