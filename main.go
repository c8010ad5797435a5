package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/adminapi"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/storefront"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	BuildVersion = "latest"
	BuildTime    = ""
)

var (
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate every table, then exit")
	seed     = flag.Bool("seed", false, "load the demo catalog before serving")
)

func printVersion() {
	fmt.Fprintf(os.Stdout, "storefront %s %s\n", BuildVersion, BuildTime)
}

func main() {
	flag.Parse()

	if *showVer {
		printVersion()
		return
	}
	if *h {
		flag.Usage()
		return
	}

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		application.Bootstrap(application.DB())
		zap.S().Info("database initialized")
		return
	}

	if *seed {
		res, err := application.SeedDemoData()
		if err != nil {
			zap.S().Fatalf("seed demo data failed: %v", err)
		}
		zap.S().Infof("seeded %d categories, %d products, %d offers", res.Categories, res.Products, res.Offers)
	}

	webserver.Init(cfg)
	if err := storefront.Register(application); err != nil {
		zap.S().Fatalf("storefront init failed: %v", err)
	}
	adminapi.Init(application)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webserver.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("shutting down")
		return webserver.Shutdown(context.Background())
	})
	g.Go(func() error {
		application.StartBackgroundJobs(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.S().Error(err)
		os.Exit(1)
	}
}
