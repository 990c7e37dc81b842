package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradeclient/src/client"
	"tradeclient/src/database"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Tradeclient CMD"
	app.Usage = "The tradeclient command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		clientCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var clientCMD = cli.Command{
	Name:        "client",
	Usage:       "run trading client",
	Action:      clientAction,
	ArgsUsage:   "",
	Flags:       []cli.Flag{},
	Description: `Run the trading client: price feed, expiry scheduler and intent API`,
}

func clientAction(_ *cli.Context) error {
	setupLogger()
	logger.Info("Starting trading client CMD")

	if err := database.InitSessionDB(); err != nil {
		logger.WithError(err).Error("Opening session database")
		return err
	}

	if err := client.Run(context.Background()); err != nil {
		logger.WithError(err).Error("Starting client")
		return err
	}
	return nil
}

func setupLogger() {
	level, err := logger.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
}
