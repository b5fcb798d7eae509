package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"buildscan/internal/buildpipeline"
	"buildscan/internal/ui"
)

// progressView decides whether `run` draws the progress view on stderr.
// --quiet always wins over --ui; auto follows tty.
func progressView(value string, quiet bool, tty func() bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on":
		return !quiet, nil
	case "off":
		return false, nil
	case "", "auto":
		return !quiet && tty(), nil
	}
	return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

type runOutcome struct {
	result buildpipeline.RunResult
	err    error
}

// runWithUI runs the build while a progress view consumes its events.
// Leaving the view early cancels the build.
func runWithUI(ctx context.Context, title string, req *buildpipeline.RunRequest) (buildpipeline.RunResult, error) {
	if req == nil {
		return buildpipeline.RunResult{}, fmt.Errorf("missing run request")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Run(ctx, &reqCopy)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, stagesFor(req.Mode), events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	cancel()
	// Keep draining so the pipeline never blocks on a full channel.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

func stagesFor(mode buildpipeline.Mode) []buildpipeline.Stage {
	if mode == buildpipeline.ModeLauncher {
		return buildpipeline.Stages()
	}
	return []buildpipeline.Stage{buildpipeline.StagePrepare, buildpipeline.StageRun, buildpipeline.StageReport}
}
