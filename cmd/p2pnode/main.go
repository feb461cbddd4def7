// Command p2pnode runs a standalone headers-first sync node: it loads a
// network profile, wires CHAIN/MEMPOOL/ADDRMGR/TIMEDATA into POOL, starts
// listening and dialing, and drops into an admin console once running.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/makonode/p2p/pkg/addrmgr"
	"github.com/makonode/p2p/pkg/chain"
	"github.com/makonode/p2p/pkg/chaincfg"
	"github.com/makonode/p2p/pkg/config"
	"github.com/makonode/p2p/pkg/mempool"
	"github.com/makonode/p2p/pkg/pool"
	"github.com/makonode/p2p/pkg/timedata"
	"github.com/makonode/p2p/pkg/wire/protocol"
)

// Version is the node's build version, embedded in its BIP14 user agent.
const Version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "p2pnode"
	app.Usage = "headers-first sync p2p node"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "network", Value: "mainnet", Usage: "mainnet, testnet or regtest"},
		cli.StringFlag{Name: "config", Usage: "path to a yaml config file, overrides the embedded profile"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "p2pnode:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), c.String("network"))
	if err != nil {
		return err
	}

	log, err := config.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	magic, err := cfg.Magic()
	if err != nil {
		return err
	}
	params, err := chaincfg.NetParams(magic)
	if err != nil {
		return err
	}
	if len(cfg.P2P.DNSSeeds) > 0 {
		params.DNSSeeds = cfg.P2P.DNSSeeds
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ch := chain.New(params, chain.WithStore(
		filepath.Join(cfg.DataDir, "headers.db"),
		filepath.Join(cfg.DataDir, "bodies"),
	))

	addrDB, err := bolt.Open(filepath.Join(cfg.DataDir, "addrmgr.db"), 0600, nil)
	if err != nil {
		return fmt.Errorf("open addrmgr db: %w", err)
	}
	defer addrDB.Close()
	amgr, err := addrmgr.New(log, addrDB)
	if err != nil {
		return fmt.Errorf("build addrmgr: %w", err)
	}

	mp := mempool.New(mempool.DefaultConfig())
	clock := timedata.New()

	reg := prometheus.NewRegistry()

	p := pool.New(pool.Config{
		Net:              magic,
		Params:           params,
		ListenAddr:       cfg.P2P.ListenAddr,
		MaxOutbound:      cfg.P2P.MaxOutbound,
		MaxInbound:       cfg.P2P.MaxInbound,
		UserAgent:        fmt.Sprintf(protocol.UserAgentWrapper+protocol.UserAgentPrefix+"%s"+protocol.UserAgentWrapper, Version),
		Services:         protocol.LocalServices,
		RequiredServices: protocol.Network,
		Relay:            cfg.P2P.Relay,
		BIP37Enabled:     cfg.P2P.BIP37Enabled,
		BIP152Enabled:    cfg.P2P.BIP152Enabled,
		StartHeight:      func() uint32 { return ch.Tip().Height },
		Chain:            ch,
		Mempool:          mp,
		Addrmgr:          amgr,
		Clock:            clock,
		Log:              log,
		Registerer:       reg,
	})

	if cfg.MetricsListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	if err := p.Run(); err != nil {
		return fmt.Errorf("start pool: %w", err)
	}
	defer p.Stop()

	log.Info("p2pnode started",
		zap.String("network", params.Magic.String()),
		zap.String("listen", cfg.P2P.ListenAddr),
	)

	for _, seed := range params.DNSSeeds {
		go dialSeed(p, seed, params.DefaultPort, log)
	}

	console := newConsole(p, ch, mp, amgr, log)
	return console.Run()
}

