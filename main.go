package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudflare/tableflip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/coldbrew/edgecache/conf"
	"github.com/coldbrew/edgecache/internal/cache"
	"github.com/coldbrew/edgecache/internal/handler"
	"github.com/coldbrew/edgecache/internal/listener"
	"github.com/coldbrew/edgecache/internal/log"
	"github.com/coldbrew/edgecache/internal/metrics"
	"github.com/coldbrew/edgecache/internal/queue"
	"github.com/coldbrew/edgecache/internal/upstream"
	"github.com/coldbrew/edgecache/internal/workerpool"
)

var (
	id, _ = os.Hostname()

	flagConf    string = "config.yaml"
	flagVerbose bool

	Version string = "no-set"
	GitHash string = "no-set"
)

func init() {
	flag.StringVar(&flagConf, "c", "config.yaml", "config file path")
	flag.BoolVar(&flagVerbose, "v", false, "enable verbose log")
}

func main() {
	flag.Parse()

	bc, err := conf.Load(flagConf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := bc.Logger.Level
	if flagVerbose {
		level = "debug"
	}
	if err := log.Init(log.Config{
		Level:      level,
		Path:       bc.Logger.Path,
		MaxSize:    bc.Logger.MaxSize,
		MaxAge:     bc.Logger.MaxAge,
		MaxBackups: bc.Logger.MaxBackups,
		Compress:   bc.Logger.Compress,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infof("starting edgecache %s (%s) on host %s, pid %d", Version, GitHash, id, os.Getpid())

	if err := run(bc); err != nil {
		log.Fatalf("edgecache exited: %v", err)
	}
}

func run(bc *conf.Bootstrap) error {
	upg, err := tableflip.New(tableflip.Options{
		PIDFile:        bc.PidFile,
		UpgradeTimeout: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("tableflip: %w", err)
	}
	defer upg.Stop()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGUSR2)
		for range sig {
			if err := upg.Upgrade(); err != nil {
				log.Errorf("tableflip: upgrade failed: %v", err)
			}
		}
	}()

	endpoints := make([]upstream.Endpoint, 0, len(bc.Services))
	for _, svc := range bc.Services {
		endpoints = append(endpoints, upstream.Endpoint{Host: svc.Addr, Port: svc.Port})
	}
	registry, err := upstream.New(upstream.WithEndpoints(endpoints))
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}

	reg := metrics.New(prometheus.DefaultRegisterer)

	store := cache.NewStore(bc.CacheDir)
	pendingWrites := queue.New[cache.PendingWrite](4096)
	writer := cache.NewWriter(store, pendingWrites, reg)
	cleaner := cache.NewCleaner(store, bc.CacheDir, time.Duration(bc.Cache.SweepIntervalSecs)*time.Second, reg)

	h := handler.New(handler.Config{
		ServerIdentifier: "edgecache/" + Version,
		CacheTTL:         bc.CacheTTL(),
		FailureRetries:   int(bc.FailureRetries),
		FailureDelay:     bc.FailureDelayDuration(),
	}, registry, store, pendingWrites, &netDialer{}, reg)

	jobs := queue.New[workerpool.Job](int(bc.Workers) * 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := workerpool.New(ctx, int(bc.Workers), jobs, workerpool.WithInFlightGauge(reg.SetInFlight))

	addr := fmt.Sprintf("%s:%d", bc.Addr, bc.Port)
	ln := listener.New(addr, pool, h.Handle, upg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		writer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleaner.Run(gctx)
		return nil
	})

	if bc.Metrics.Addr != "" {
		metricsSrv := &http.Server{Addr: bc.Metrics.Addr, Handler: promhttp.Handler()}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			log.Infof("metrics: serving on %s", bc.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return ln.Run(gctx)
	})

	if err := upg.Ready(); err != nil {
		cancel()
		return fmt.Errorf("tableflip: %w", err)
	}
	log.Infof("listening on %s, pid %d", addr, os.Getpid())

	<-upg.Exit()
	cancel()

	return g.Wait()
}

type netDialer struct{}

func (d *netDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, network, address)
}
