package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"shopflow/internal/config"
	"shopflow/internal/jobstore"
	"shopflow/internal/logging"
	"shopflow/internal/notifications"
	"shopflow/internal/stages"
	"shopflow/internal/workflow"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

// session is an open store plus the engine driving it.
type session struct {
	cfg    *config.Config
	store  *jobstore.Store
	engine *workflow.Engine
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
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

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) jsonMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withSession opens the job store and engine for the duration of fn.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	reg, err := stages.LoadRegistry(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load stage catalogue: %w", err)
	}
	store, err := jobstore.Open(cfg, reg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := workflow.NewEngine(cfg, reg, store, cliLogger(cmd, cfg),
		workflow.WithNotifier(notifications.NewService(cfg)),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(&session{cfg: cfg, store: store, engine: engine})
}

// cliLogger writes warnings and errors to stderr so table output stays clean.
func cliLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:  "warn",
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
