package diagfmt

import (
	"fmt"
	"io"

	"buildscan/internal/buildpipeline"
)

// RenderOpts bundles per-format options.
type RenderOpts struct {
	Pretty PrettyOpts
	Sarif  SarifRunMeta
}

// Render writes res in the selected format.
func Render(w io.Writer, format Format, res buildpipeline.RunResult, opts RenderOpts) error {
	switch format {
	case FormatJSON:
		return JSON(w, BuildReportOutput(res))
	case FormatMsgPack:
		return MsgPack(w, BuildReportOutput(res))
	case FormatSarif:
		return Sarif(w, BuildReportOutput(res), opts.Sarif)
	case FormatPretty, "":
		if err := Pretty(w, res.Report, opts.Pretty); err != nil {
			return err
		}
		if len(res.Report) > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintln(w, Summary(res.Errors, res.Warnings))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
