package config

import (
	"fmt"

	"fortio.org/safecast"

	"buildscan/internal/buildpipeline"
)

func (l LimitsConfig) toUint() (buildpipeline.Limits, error) {
	var out buildpipeline.Limits
	fields := []struct {
		name string
		src  int
		dst  *uint
	}{
		{"max_errors", l.MaxErrors, &out.MaxErrors},
		{"max_warnings", l.MaxWarnings, &out.MaxWarnings},
		{"max_pre_context", l.MaxPreContext, &out.MaxPreContext},
		{"max_post_context", l.MaxPostContext, &out.MaxPostContext},
	}
	for _, f := range fields {
		v, err := safecast.Conv[uint](f.src)
		if err != nil {
			return buildpipeline.Limits{}, fmt.Errorf("[limits].%s: %d is out of range: %w", f.name, f.src, err)
		}
		*f.dst = v
	}
	return out, nil
}

// RunRequest converts the configuration into a pipeline request for command.
func (c Config) RunRequest(command string) (*buildpipeline.RunRequest, error) {
	limits, err := c.Limits.toUint()
	if err != nil {
		return nil, err
	}
	mode, err := buildpipeline.ParseMode(c.Run.Mode)
	if err != nil {
		return nil, err
	}
	return &buildpipeline.RunRequest{
		Command:   command,
		Timeout:   c.Run.Timeout.Duration,
		Mode:      mode,
		Rules:     c.Rules.RuleConfig(),
		Limits:    limits,
		LaunchDir: c.Run.LaunchDir,
		SourceDir: c.Run.SourceDir,
		BuildDir:  c.Run.BuildDir,
		Encoding:  c.Run.Encoding,
	}, nil
}

// ScanRequest converts the configuration into a log scan request.
func (c Config) ScanRequest() (buildpipeline.ScanRequest, error) {
	limits, err := c.Limits.toUint()
	if err != nil {
		return buildpipeline.ScanRequest{}, err
	}
	return buildpipeline.ScanRequest{
		Rules:     c.Rules.RuleConfig(),
		Limits:    limits,
		SourceDir: c.Run.SourceDir,
		BuildDir:  c.Run.BuildDir,
		Encoding:  c.Run.Encoding,
	}, nil
}
