package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/daico"
	"github.com/axiomesh/daico/core"
	"github.com/axiomesh/daico/repo"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
)

func start(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	db, d, err := openDAICO(r)
	if err != nil {
		return err
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))

	n := &node{db: db}
	if r.Config.Keeper.Enable {
		n.keeper = core.NewKeeper(ctx.Context, d, r.Config.Keeper.Interval, logger.WithField("module", "keeper"))
	}
	if r.Config.Watch.Enable {
		dial := func(c context.Context) (core.Client, error) {
			return ethclient.DialContext(c, r.Config.DialUrl)
		}
		client, err := dial(ctx.Context)
		if err != nil {
			return err
		}
		n.watcher = core.NewWatcher(ctx.Context, r.Config, d, client, dial)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	handleShutdown(n, &wg)

	if err := n.start(); err != nil {
		return fmt.Errorf("start daico failed: %w", err)
	}

	fmt.Println("=============DAICO is ready=============")

	wg.Wait()

	return nil
}

// node groups the background services started by the start command.
type node struct {
	db      storage.Storage
	keeper  *core.Keeper
	watcher *core.Watcher
}

func (n *node) start() error {
	if n.watcher != nil {
		if err := n.watcher.Start(); err != nil {
			return err
		}
	}
	if n.keeper != nil {
		n.keeper.Start()
	}
	return nil
}

func (n *node) stop() error {
	if n.keeper != nil {
		n.keeper.Stop()
	}
	if n.watcher != nil {
		if err := n.watcher.Stop(); err != nil {
			return err
		}
	}
	return n.db.Close()
}

func openDAICO(r *repo.Repo) (storage.Storage, *core.DAICO, error) {
	db, err := leveldb.New(r.StoragePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))
	d, err := core.NewDAICO(r.Config, db, core.WithLogger(logger.WithField("module", "daico")))
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("new daico error: %w", err)
	}
	return db, d, nil
}

func printVersion() {
	fmt.Printf("DAICO version: %s-%s-%s\n", daico.CurrentVersion, daico.CurrentBranch, daico.CurrentCommit)
	fmt.Printf("App build date: %s\n", daico.BuildDate)
	fmt.Printf("System version: %s\n", daico.Platform)
	fmt.Printf("Golang version: %s\n", daico.GoVersion)
	fmt.Println()
}

func handleShutdown(n *node, wg *sync.WaitGroup) {
	var stop = make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM)
	signal.Notify(stop, syscall.SIGINT)

	go func() {
		<-stop
		fmt.Println("received interrupt signal, shutting down...")
		if err := n.stop(); err != nil {
			panic(err)
		}
		wg.Done()
		os.Exit(0)
	}()
}
