// Command voicepiped runs the voicepipe dictation daemon and its one-shot
// companion mode.
//
//	voicepiped serve              # HTTP control surface + run queue
//	voicepiped run clip.wav       # transcribe one clip and print the text
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/symphovais/voicepipe/pkg/config"
)

// version is stamped by the release build.
var version = "0.3.0"

func main() {
	app := &cli.App{
		Name:    "voicepiped",
		Usage:   "local dictation pipeline daemon",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"VOICEPIPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			runCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "voicepiped:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the shared --config and --log-level flags into a
// validated configuration.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version",
		Action: func(c *cli.Context) error {
			fmt.Printf("voicepiped %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
