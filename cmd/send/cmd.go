package send

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/cli"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/extd"
	"github.com/yusufsyaifudin/kirimsurat/internal/dispatch"
	"github.com/yusufsyaifudin/ylog"
)

const (
	ExitSuccess = 0
	ExitErr     = 1
)

type Cmd struct {
	flags      *flag.FlagSet
	configFile string
	recipients string
	reportFile string
	stdout     io.Writer
}

func NewCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			flags:  &flag.FlagSet{},
			stdout: os.Stdout,
		}
		err := cmd.init()
		return cmd, err
	}
}

var _ cli.Command = (*Cmd)(nil)
var _ cli.CommandFactory = NewCmd()

func (c *Cmd) init() error {
	c.flags = flag.NewFlagSet("send", flag.ContinueOnError)
	c.flags.StringVar(&c.configFile, "config", config.DefaultFile,
		"Config file to load")
	c.flags.StringVar(&c.configFile, "c", config.DefaultFile,
		"Alias for config file to load")
	c.flags.StringVar(&c.recipients, "recipients", "",
		"Recipient table (.csv or .xlsx), overrides message.recipients")
	c.flags.StringVar(&c.reportFile, "report", "",
		"Write the JSON report to this file instead of stdout")
	return nil
}

func (c *Cmd) Help() string {
	return `Usage: kirimsurat send [-config config.yml] [-recipients list.csv|list.xlsx] [-report report.json]

  Sends the configured message to every row of the recipient table over one SMTP session.
  SIGINT or SIGTERM stops the run after the recipient in flight.
  The JSON report (summary and per recipient log) is written at the end.`
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logs go to stderr, stdout is kept for the report
	ctx = extd.SetupLog(ctx, cfg.Log, os.Stderr)

	err = cfg.Preflight()
	if err != nil {
		ylog.Error(ctx, "preflight check: failed", ylog.KV("error", err))
		return ExitErr
	}

	in, err := extd.RunInput(cfg, c.recipients)
	if err != nil {
		ylog.Error(ctx, "loading run input: failed", ylog.KV("error", err))
		return ExitErr
	}

	shutdownTracing, err := extd.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		ylog.Error(ctx, "tracing preparation: failed", ylog.KV("error", err))
		return ExitErr
	}

	defer shutdownTracing()

	engine, err := extd.NewEngine(cfg.SMTP)
	if err != nil {
		ylog.Error(ctx, "dispatch engine preparation: failed", ylog.KV("error", err))
		return ExitErr
	}

	in.OnProgress = func(ev dispatch.Event) {
		ylog.Info(ctx, fmt.Sprintf("progress %d/%d", ev.Processed, ev.Total),
			ylog.KV("index", ev.Index),
			ylog.KV("address", ev.Address),
			ylog.KV("outcome", ev.Outcome.Kind),
			ylog.KV("reason", ev.Outcome.Reason),
		)
	}

	result, runErr := engine.Run(ctx, in)
	if runErr != nil {
		ylog.Error(ctx, "dispatch: failed", ylog.KV("error", runErr))
	}

	err = c.writeReport(result, runErr)
	if err != nil {
		ylog.Error(ctx, "writing report: failed", ylog.KV("error", err))
		return ExitErr
	}

	if runErr != nil {
		return ExitErr
	}

	return ExitSuccess
}

func (c *Cmd) Synopsis() string {
	return `Send the personalized message to every recipient`
}

func (c *Cmd) writeReport(result dispatch.Result, runErr error) (err error) {
	w := c.stdout
	if c.reportFile != "" {
		f, _err := os.Create(c.reportFile)
		if _err != nil {
			return fmt.Errorf("error create report file %s: %w", c.reportFile, _err)
		}

		defer func() {
			if _err := f.Close(); _err != nil && err == nil {
				err = _err
			}
		}()

		w = f
	}

	return WriteReport(w, result, runErr)
}

// Report is the document written when a run ends.
type Report struct {
	Result dispatch.Result `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// WriteReport encodes the run result as indented JSON.
func WriteReport(w io.Writer, result dispatch.Result, runErr error) error {
	report := Report{Result: result}
	if runErr != nil {
		report.Error = runErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
