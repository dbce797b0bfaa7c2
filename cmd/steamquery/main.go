// steamquery is a one-shot CLI over the Source query client: it asks one
// server for its info and, optionally, the player list and rules.
package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/blukai/steamquery/internal/a2s"
	"github.com/blukai/steamquery/internal/bytebuf"
	"github.com/blukai/steamquery/internal/monitor"
	"github.com/blukai/steamquery/internal/queryclient"
	"github.com/blukai/steamquery/internal/vars"
	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	"github.com/phuslu/log"
)

type options struct {
	Timeout  time.Duration `short:"t" long:"timeout" description:"Query timeout" default:"3s"`
	Encoding string        `short:"e" long:"encoding" description:"String decoding (utf-8, windows-1252, raw)" default:"utf-8"`
	Retries  int           `long:"max-retries" description:"Challenge retry bound" default:"5"`
	Players  bool          `short:"p" long:"players" description:"Also query the player list"`
	Rules    bool          `short:"r" long:"rules" description:"Also query server rules"`
	Debug    bool          `short:"d" long:"debug" description:"Enable debug logging"`
	Version  bool          `short:"v" long:"version" description:"Print version and exit"`

	Args struct {
		Address string `positional-arg-name:"host:port"`
	} `positional-args:"true"`
}

func configureLogger(debugLevel bool) *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}
	if !debugLevel {
		logger.Level = log.WarnLevel
	}

	return &logger
}

func erringMain() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	if opts.Version {
		fmt.Println(vars.String())
		return nil
	}
	if opts.Args.Address == "" {
		return fmt.Errorf("missing host:port argument")
	}

	target, err := monitor.ParseTarget(opts.Args.Address)
	if err != nil {
		return err
	}

	decoding, err := bytebuf.ParseStringDecoding(opts.Encoding)
	if err != nil {
		return err
	}

	logger := configureLogger(opts.Debug)
	cfg := queryclient.Config{
		Timeout:    opts.Timeout,
		Decoding:   decoding,
		MaxRetries: opts.Retries,
	}

	info, err := queryclient.QueryInfo(target.Host, target.Port, cfg, logger)
	if err != nil {
		return fmt.Errorf("could not query info: %w", err)
	}
	printInfo(info)

	if opts.Players {
		list, err := queryclient.QueryPlayers(target.Host, target.Port, cfg, logger)
		if err != nil {
			return fmt.Errorf("could not query players: %w", err)
		}
		printPlayers(list)
	}

	if opts.Rules {
		rules, err := queryclient.QueryRules(target.Host, target.Port, cfg, logger)
		if err != nil {
			return fmt.Errorf("could not query rules: %w", err)
		}
		printRules(rules)
	}

	return nil
}

func printInfo(info *a2s.Info) {
	fmt.Printf("name:        %s\n", info.Name)
	fmt.Printf("map:         %s\n", info.Map)
	fmt.Printf("game:        %s (%s)\n", info.Game, info.Folder)
	fmt.Printf("engine:      %s\n", info.Engine)
	fmt.Printf("players:     %d/%d (%d bots)\n", info.Players, info.MaxPlayers, info.Bots)
	fmt.Printf("type/env:    %c/%c\n", info.ServerType, info.Environment)
	fmt.Printf("password:    %t\n", info.Password)
	fmt.Printf("vac:         %t\n", info.VAC)
	fmt.Printf("ping:        %s\n", info.Ping)

	switch info.Engine {
	case a2s.EngineSource:
		fmt.Printf("version:     %s\n", info.Version)
		fmt.Printf("app id:      %d\n", info.AppID)
		if info.EDF&a2s.EDFPort != 0 {
			fmt.Printf("port:        %d\n", info.Port)
		}
		if info.EDF&a2s.EDFKeywords != 0 {
			fmt.Printf("keywords:    %s\n", info.Keywords)
		}
	case a2s.EngineGoldSource:
		fmt.Printf("address:     %s\n", info.Address)
		if info.Mod != nil {
			fmt.Printf("mod:         %s (v%d)\n", info.Mod.Website, info.Mod.Version)
		}
	}
}

func printPlayers(list *a2s.PlayerList) {
	fmt.Printf("\n%d players:\n", len(list.Players))

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"#", "Name", "Score", "Connected"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, p := range list.Players {
		connected := time.Duration(float64(p.Duration) * float64(time.Second)).Round(time.Second)
		tw.Append([]string{
			fmt.Sprintf("%d", p.Index),
			p.Name,
			fmt.Sprintf("%d", p.Score),
			connected.String(),
		})
	}
	tw.Render()
}

func printRules(rules *a2s.Rules) {
	fmt.Printf("\n%d rules:\n", len(rules.Rules))

	keys := make([]string, 0, len(rules.Rules))
	for key := range rules.Rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Rule", "Value"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, key := range keys {
		tw.Append([]string{key, rules.Rules[key]})
	}
	tw.Render()
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "steamquery: %v\n", err)
		os.Exit(1)
	}
}
