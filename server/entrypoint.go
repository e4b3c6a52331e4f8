package server

import (
	"context"
	"path/filepath"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/skyrelay/groundcore/config"
	"github.com/skyrelay/groundcore/logging"
)

// Arguments for the ground station command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=ground station config file"`
	Debug      bool   `flag:"debug"`
}

// RunServer reads the config named by args, runs a Station until ctx is
// done, and then shuts it down. An invalid config refuses to start.
func RunServer(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}

	cfg, err := config.Read(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	// A relative trajectories path is resolved against the config file.
	if cfg.TrajectoriesFile != "" && !filepath.IsAbs(cfg.TrajectoriesFile) {
		cfg.TrajectoriesFile = filepath.Join(filepath.Dir(argsParsed.ConfigFile), cfg.TrajectoriesFile)
	}

	station := New(cfg, logger)
	defer func() {
		err = multierr.Combine(err, station.Close())
	}()
	if err := station.Start(ctx); err != nil {
		return err
	}

	goutils.ContextMainReadyFunc(ctx)()
	<-ctx.Done()
	return nil
}
