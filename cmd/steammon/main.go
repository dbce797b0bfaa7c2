// steammon polls a configured set of Source servers on an interval and
// records the results in SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/blukai/steamquery/internal/bytebuf"
	"github.com/blukai/steamquery/internal/monitor"
	"github.com/blukai/steamquery/internal/queryclient"
	"github.com/blukai/steamquery/internal/storage"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	Servers  []string      `envconfig:"STEAMMON_SERVERS" required:"true"`
	Interval time.Duration `envconfig:"STEAMMON_INTERVAL" default:"60s"`
	Timeout  time.Duration `envconfig:"STEAMMON_TIMEOUT" default:"3s"`
	Encoding string        `envconfig:"STEAMMON_ENCODING" default:"utf-8"`
	DBPath   string        `envconfig:"STEAMMON_DB" default:"steammon.db"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger() *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	decoding, err := bytebuf.ParseStringDecoding(config.Encoding)
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	targets := make([]monitor.Target, 0, len(config.Servers))
	for _, server := range config.Servers {
		target, err := monitor.ParseTarget(server)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}

	store, err := storage.New(config.DBPath)
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Msgf("could not close storage: %v", err)
		}
	}()

	mon := monitor.New(targets, config.Interval, queryclient.Config{
		Timeout:  config.Timeout,
		Decoding: decoding,
	}, store, logger)
	logger.Info().Msgf("monitoring %d servers every %s", len(targets), config.Interval)

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	var monRunErr error
	go func() {
		defer wg.Done()
		monRunErr = mon.Run(ctx)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-signalChan
	logger.Info().Msgf("received %+v signal", sig)

	cancel()
	wg.Wait()
	if monRunErr != nil {
		return fmt.Errorf("monitor run failed: %w", monRunErr)
	}

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "steammon: %v\n", err)
		os.Exit(1)
	}
}
