package preview

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/extd"
	"github.com/yusufsyaifudin/kirimsurat/internal/dispatch"
)

const (
	ExitSuccess = 0
	ExitErr     = 1
)

type Cmd struct {
	flags      *flag.FlagSet
	configFile string
	recipients string
	index      int
	stdout     io.Writer
}

func NewCmd() func() (cli.Command, error) {
	return NewCmdWithOutput(os.Stdout)
}

// NewCmdWithOutput is NewCmd writing the rendered preview to w.
func NewCmdWithOutput(w io.Writer) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			flags:  &flag.FlagSet{},
			stdout: w,
		}
		err := cmd.init()
		return cmd, err
	}
}

var _ cli.Command = (*Cmd)(nil)
var _ cli.CommandFactory = NewCmd()

func (c *Cmd) init() error {
	c.flags = flag.NewFlagSet("preview", flag.ContinueOnError)
	c.flags.StringVar(&c.configFile, "config", config.DefaultFile,
		"Config file to load")
	c.flags.StringVar(&c.configFile, "c", config.DefaultFile,
		"Alias for config file to load")
	c.flags.StringVar(&c.recipients, "recipients", "",
		"Recipient table (.csv or .xlsx), overrides message.recipients")
	c.flags.IntVar(&c.index, "index", 0,
		"Zero based row of the recipient table to render")
	return nil
}

func (c *Cmd) Help() string {
	return `Usage: kirimsurat preview [-config config.yml] [-recipients list.csv|list.xlsx] [-index 0]

  Renders subject and body for one recipient without connecting to the relay.
  Placeholders that match no column are listed.`
}

func (c *Cmd) Run(args []string) int {
	err := c.flags.Parse(args)
	if err != nil {
		log.Printf("error parsing config argument: %s", err)
		return ExitErr
	}

	cfg, err := config.Load(c.configFile)
	if err != nil {
		log.Printf("error load config: %s", err)
		return ExitErr
	}

	path := c.recipients
	if path == "" {
		path = cfg.Message.Recipients
	}

	set, err := extd.LoadRecipients(path)
	if err != nil {
		log.Printf("error load recipients: %s", err)
		return ExitErr
	}

	body, err := cfg.Message.LoadBody()
	if err != nil {
		log.Printf("error load body: %s", err)
		return ExitErr
	}

	tpl := dispatch.Template{
		Subject: cfg.Message.Subject,
		Body:    body,
	}

	p, err := dispatch.RenderPreview(set, c.index, tpl, cfg.Message.AddressColumn)
	if err != nil {
		log.Printf("error render preview: %s", err)
		return ExitErr
	}

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err = enc.Encode(p); err != nil {
		log.Printf("error write preview: %s", err)
		return ExitErr
	}

	return ExitSuccess
}

func (c *Cmd) Synopsis() string {
	return `Render the message for one recipient without sending`
}
