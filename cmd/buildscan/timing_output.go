package main

import (
	"fmt"
	"io"

	"buildscan/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings) error {
	if out == nil {
		return nil
	}
	labels := map[buildpipeline.Stage]string{
		buildpipeline.StagePrepare: "prepared",
		buildpipeline.StageRun:     "ran",
		buildpipeline.StageMerge:   "merged",
		buildpipeline.StageReport:  "reported",
	}
	for _, stage := range buildpipeline.Stages() {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", labels[stage], toMillis(timings.Duration(stage))); err != nil {
			return err
		}
	}
	return nil
}
