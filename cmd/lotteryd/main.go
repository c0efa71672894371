package main

import (
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cometbft/cometbft/abci/server"
	"github.com/google/logger"
	"gopkg.in/urfave/cli.v1"

	"onchainlottery/internal/app"
	"onchainlottery/internal/config"
	"onchainlottery/internal/gateway"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "lotteryd"
	cliApp.Usage = "lottery ledger ABCI application"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to TOML config file",
		},
		cli.StringFlag{
			Name:  "home",
			Usage: "app home directory (state is stored under <home>/app)",
		},
		cli.StringFlag{
			Name:  "addr",
			Usage: "ABCI listen address",
		},
		cli.StringFlag{
			Name:  "transport",
			Usage: "ABCI transport (socket|grpc)",
		},
		cli.StringFlag{
			Name:  "gateway-addr",
			Usage: "enable the HTTP read gateway on this address",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "debug logging",
		},
	}
	cliApp.Action = run

	if err := cliApp.Run(os.Args); err != nil {
		logger.Fatalf("lotteryd: %v", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	// Flags override file values.
	if v := c.String("home"); v != "" {
		cfg.Home = v
	}
	if v := c.String("addr"); v != "" {
		cfg.ABCI.ListenAddr = v
	}
	if v := c.String("transport"); v != "" {
		cfg.ABCI.Transport = v
	}
	if v := c.String("gateway-addr"); v != "" {
		cfg.Gateway.Enabled = true
		cfg.Gateway.ListenAddr = v
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg := logger.Init("lotteryd", cfg.Verbose, false, io.Discard)
	defer lg.Close()

	a, err := app.New(cfg.Home)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := server.NewServer(cfg.ABCI.ListenAddr, cfg.ABCI.Transport, a)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() { _ = srv.Stop() }()
	logger.Infof("abci server listening on %s (%s)", cfg.ABCI.ListenAddr, cfg.ABCI.Transport)

	if cfg.Gateway.Enabled {
		go func() {
			logger.Infof("http gateway listening on %s", cfg.Gateway.ListenAddr)
			if err := http.ListenAndServe(cfg.Gateway.ListenAddr, gateway.New(a)); err != nil {
				logger.Errorf("http gateway: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	return nil
}
