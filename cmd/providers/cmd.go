package providers

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/kirimsurat/config"
)

const (
	ExitSuccess = 0
	ExitErr     = 1
)

type Cmd struct {
	flags  *flag.FlagSet
	stdout io.Writer
}

func NewCmd() func() (cli.Command, error) {
	return NewCmdWithOutput(os.Stdout)
}

// NewCmdWithOutput is NewCmd writing the list to w.
func NewCmdWithOutput(w io.Writer) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			flags:  flag.NewFlagSet("providers", flag.ContinueOnError),
			stdout: w,
		}
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)
var _ cli.CommandFactory = NewCmd()

func (c *Cmd) Help() string {
	return `Usage: kirimsurat providers

  Prints the relay presets usable as smtp.provider.`
}

func (c *Cmd) Run(args []string) int {
	if err := c.flags.Parse(args); err != nil {
		log.Printf("error parsing argument: %s", err)
		return ExitErr
	}

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(config.Providers()); err != nil {
		log.Printf("error write providers: %s", err)
		return ExitErr
	}

	return ExitSuccess
}

func (c *Cmd) Synopsis() string {
	return `List the relay presets`
}
