package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/symphovais/voicepipe/pkg/dictation"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/progress"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "transcribe one WAV clip through the local pipeline",
		ArgsUsage: "<clip.wav>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "suppress progress and timing output",
			},
		},
		Action: runOnce,
	}
}

func runOnce(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: voicepiped run <clip.wav>", 2)
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read clip: %w", err)
	}

	pipe, err := dictation.New(cfg.DictationConfig())
	if err != nil {
		return err
	}

	run := pipeline.NewContext()
	run.Set(dictation.KeyAudio, audio)

	quiet := c.Bool("quiet")
	var sink *progress.WriterSink
	if !quiet {
		sink = progress.NewWriter(os.Stderr)
		run.SetSink(sink)
	}

	// Ctrl-C cancels the run; the pipeline reports it as canceled rather
	// than killing the process mid-request.
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, _ := pipe.Execute(ctx, run)
	if sink != nil {
		sink.Close()
	}
	if !quiet {
		printStageTable(os.Stderr, result)
	}

	switch {
	case result.Canceled:
		return cli.Exit("canceled: "+result.ErrorMessage, 130)
	case !result.IsSuccess:
		return cli.Exit(fmt.Sprintf("%s: %s", result.FailedStage, result.ErrorMessage), 1)
	}

	text, _ := pipeline.Data[string](run, dictation.KeyText)
	fmt.Println(text)
	return nil
}

// printStageTable renders per-stage wall time after a run.
func printStageTable(w io.Writer, result *pipeline.Result) {
	if result.Metrics == nil || result.Metrics.Len() == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tDURATION\tSTATUS")
	for _, sm := range result.Metrics.Stages() {
		status := "ok"
		if sm.StageName == result.FailedStage {
			status = "failed"
			if result.Canceled {
				status = "canceled"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			sm.StageName, sm.Duration().Round(time.Millisecond), status)
	}
	fmt.Fprintf(tw, "total\t%s\t\n", result.Duration.Round(time.Millisecond))
	tw.Flush()
}
