package serve

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/extd"
	"github.com/yusufsyaifudin/ylog"
)

const (
	ExitSuccess = 0
	ExitErr     = 1
)

type Cmd struct {
	flags      *flag.FlagSet
	configFile string
}

func NewCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			flags: &flag.FlagSet{},
		}
		err := cmd.init()
		return cmd, err
	}
}

var _ cli.Command = (*Cmd)(nil)
var _ cli.CommandFactory = NewCmd()

func (c *Cmd) init() error {
	c.flags = flag.NewFlagSet("serve", flag.ContinueOnError)
	c.flags.StringVar(&c.configFile, "config", config.DefaultFile,
		"Config file to load")
	c.flags.StringVar(&c.configFile, "c", config.DefaultFile,
		"Alias for config file to load")
	return nil
}

func (c *Cmd) Help() string {
	return `Usage: kirimsurat serve [-config config.yml]

  Starts the REST API. Every dispatch request carries its own relay account,
  recipients and template. Only transport, tracing, log and smtp timeouts are read from the config.`
}

func (c *Cmd) Run(args []string) int {
	err := c.flags.Parse(args)
	if err != nil {
		log.Printf("error parsing config argument: %s", err)
		return ExitErr
	}

	// ** load config file
	cfg, err := config.Load(c.configFile)
	if err != nil {
		log.Printf("error load config: %s", err)
		return ExitErr
	}

	ctx := extd.SetupLog(context.Background(), cfg.Log, os.Stdout)
	ylog.Info(ctx, "logger: ready")

	err = extd.RunServer(ctx, cfg)
	if err != nil {
		ylog.Error(ctx, "system: stopped with error", ylog.KV("error", err))
		return ExitErr
	}

	return ExitSuccess
}

func (c *Cmd) Synopsis() string {
	return `Start the REST API with NDJSON progress streaming`
}
