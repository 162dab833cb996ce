package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"cgsync/internal/config"
	"cgsync/internal/svc"
	"cgsync/internal/tasks"
)

var (
	configFile = flag.String("f", "etc/cgsync.yaml", "config file path")
	onlyTasks  = flag.String("tasks", "", "comma-separated task names to run (default: all)")
)

func main() {
	flag.Parse()

	c := config.MustLoad(*configFile)
	c.MustSetUp()
	defer logx.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sctx, err := svc.NewServiceContext(c)
	if err != nil {
		logx.Errorf("init: %v", err)
		os.Exit(1)
	}
	if err := sctx.Ping(ctx); err != nil {
		logx.Errorf("init: %v", err)
		os.Exit(1)
	}

	window, err := c.Window()
	if err != nil {
		logx.Errorf("init: %v", err)
		os.Exit(1)
	}
	logx.Infof("ingest window [%d, %d] tasks=%s", window.StartMS, window.EndMS, taskFilterLabel(only(c)))

	runner := &tasks.Runner{
		Fetcher:   sctx.Client,
		Writer:    sctx.Writer,
		Cache:     watermarkCache(sctx),
		TTL:       sctx.TTL,
		Window:    window,
		Grids:     grids(c),
		PageLimit: c.Provider.PageLimit,
		Only:      only(c),
	}

	reports, runErr := runner.Run(ctx)
	total := 0
	for _, rep := range reports {
		total += rep.Rows
	}
	logx.Infof("ingest finished: tasks=%d rows=%d", len(reports), total)
	if runErr != nil {
		logx.Errorf("ingest: %v", runErr)
		os.Exit(1)
	}
}

// only merges the CLI task filter over the configured one.
func only(c *config.Config) []string {
	if *onlyTasks != "" {
		parts := strings.Split(*onlyTasks, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return c.Ingest.Tasks
}

func grids(c *config.Config) tasks.Grids {
	return tasks.Grids{
		Exchanges:     c.Grids.Exchanges,
		Coins:         c.Grids.Coins,
		FuturesPairs:  c.Grids.FuturesPairs,
		SpotPairs:     c.Grids.SpotPairs,
		ExchangeLists: c.Grids.ExchangeLists,
	}
}

func watermarkCache(s *svc.ServiceContext) tasks.WatermarkCache {
	if s.Cache == nil {
		return nil
	}
	return s.Cache
}

func taskFilterLabel(names []string) string {
	if len(names) == 0 {
		return "all"
	}
	return strings.Join(names, ",")
}
