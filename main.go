package main

import (
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/kirimsurat/cmd/preview"
	"github.com/yusufsyaifudin/kirimsurat/cmd/providers"
	"github.com/yusufsyaifudin/kirimsurat/cmd/send"
	"github.com/yusufsyaifudin/kirimsurat/cmd/serve"
	"github.com/yusufsyaifudin/kirimsurat/extd"
)

func main() {
	sendCmd := send.NewCmd()

	c := cli.NewCLI(extd.AppName, extd.AppVersion)
	c.Args = os.Args[1:]
	c.Autocomplete = true
	c.Commands = map[string]cli.CommandFactory{
		"":          sendCmd, // default command if no subcommand defined
		"send":      sendCmd,
		"preview":   preview.NewCmd(),
		"serve":     serve.NewCmd(),
		"providers": providers.NewCmd(),
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}
