package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chzyer/readline"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/makonode/p2p/pkg/addrmgr"
	"github.com/makonode/p2p/pkg/chain"
	"github.com/makonode/p2p/pkg/mempool"
	"github.com/makonode/p2p/pkg/pool"
)

// console is the node's interactive admin shell: a readline loop feeding
// whitespace-split commands into an urfave/cli App.
type console struct {
	pool    *pool.Pool
	chain   *chain.Chain
	mempool *mempool.Pool
	addrmgr *addrmgr.Addrmgr
	log     *zap.Logger

	rl    *readline.Instance
	shell *cli.App
}

func newConsole(p *pool.Pool, ch *chain.Chain, mp *mempool.Pool, amgr *addrmgr.Addrmgr, log *zap.Logger) *console {
	c := &console{pool: p, chain: ch, mempool: mp, addrmgr: amgr, log: log}

	rl, err := readline.NewEx(&readline.Config{Prompt: "p2pnode> "})
	if err != nil {
		// readline only fails to construct when stdin/stdout can't be put
		// into raw mode; fall back to a minimally usable instance rather
		// than refusing to start the node.
		rl, _ = readline.New("p2pnode> ")
	}
	c.rl = rl

	app := cli.NewApp()
	app.Name = "p2pnode"
	app.HelpName = ""
	app.UsageText = ""
	app.Writer = rl.Stdout()
	app.ErrWriter = rl.Stderr()
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = []cli.Command{
		{Name: "peers", Usage: "show peer counts", Action: c.cmdPeers},
		{Name: "getinfo", Usage: "show sync mode and chain tip height", Action: c.cmdGetInfo},
		{Name: "mempool", Usage: "show mempool size", Action: c.cmdMempool},
		{Name: "connect", Usage: "connect <addr>", ArgsUsage: "<addr>", Action: c.cmdConnect},
		{Name: "ban", Usage: "ban <addr> [duration]", ArgsUsage: "<addr> [duration]", Action: c.cmdBan},
		{Name: "exit", Usage: "shut the node down", Action: c.cmdExit},
	}
	c.shell = app

	return c
}

// Run drives the console until EOF, Ctrl-C or an "exit" command.
func (c *console) Run() error {
	defer c.rl.Close()
	c.log.Info("console ready")
	for {
		line, err := c.rl.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("console: read input: %w", err)
		}

		args, err := shellquote.Split(line)
		if err != nil {
			fmt.Fprintln(c.shell.ErrWriter, "parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if err := c.shell.Run(append([]string{"p2pnode"}, args...)); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintln(c.shell.ErrWriter, err)
		}
	}
}

var errExit = errors.New("console: exit requested")

func (c *console) cmdPeers(ctx *cli.Context) error {
	fmt.Fprintf(ctx.App.Writer, "peers=%d inbound=%d outbound=%d\n",
		c.pool.PeerCount(), c.pool.InboundCount(), c.pool.OutboundCount())
	return nil
}

func (c *console) cmdGetInfo(ctx *cli.Context) error {
	tip := c.chain.Tip()
	fmt.Fprintf(ctx.App.Writer, "sync_mode=%s tip_height=%d tip_hash=%s peers=%d\n",
		c.pool.SyncMode(), tip.Height, tip.Hash, c.pool.PeerCount())
	return nil
}

func (c *console) cmdMempool(ctx *cli.Context) error {
	fmt.Fprintf(ctx.App.Writer, "mempool_size=%d\n", c.mempool.Len())
	return nil
}

func (c *console) cmdConnect(ctx *cli.Context) error {
	addr := ctx.Args().First()
	if addr == "" {
		return errors.New("usage: connect <addr>")
	}
	return c.pool.Connect(addr)
}

func (c *console) cmdBan(ctx *cli.Context) error {
	addr := ctx.Args().First()
	if addr == "" {
		return errors.New("usage: ban <addr> [duration]")
	}
	dur := 24 * time.Hour
	if d := ctx.Args().Get(1); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", d, err)
		}
		dur = parsed
	}
	c.addrmgr.Ban(addr, time.Now().Add(dur))
	return nil
}

func (c *console) cmdExit(*cli.Context) error {
	return errExit
}
