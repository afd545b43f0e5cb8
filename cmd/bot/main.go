package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" env:"TILDY_CONFIG" default:"config.yaml"`
	Debug   bool   `help:"Enable debug logging."`

	Run         RunCmd         `cmd:"" help:"Run the bot." default:"1"`
	Migrate     MigrateCmd     `cmd:"" help:"Apply record store migrations."`
	CheckConfig CheckConfigCmd `cmd:"" help:"Validate the configuration and exit."`
}

// Context is passed to every command's Run method.
type Context struct {
	ConfigPath string
	Debug      bool
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("tildy"),
		kong.Description("Meal reminder and trigger bot"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	err := ctx.Run(&Context{ConfigPath: CLI.Config, Debug: CLI.Debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
