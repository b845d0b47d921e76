package main

import (
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/linecart/pkg/cart"
)

type Options struct {
	Config  string         `short:"c" long:"config" default:"linecart.json" description:"Configuration file"`
	Setup   SetupCommand   `command:"setup" description:"Find the motor controller and arm, calibrate the arm"`
	Run     RunCommand     `command:"run" description:"Run the mission with a live dashboard"`
	History HistoryCommand `command:"history" description:"Show recorded mission runs"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "linecart - line-following pick-and-place cart controller"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func configPath() string {
	if opts.Config == "" {
		return cart.DefaultConfigFile
	}
	return opts.Config
}
