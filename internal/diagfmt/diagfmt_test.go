package diagfmt

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"buildscan/internal/buildpipeline"
	"buildscan/internal/diag"
	"buildscan/internal/report"
)

func sampleResult() buildpipeline.RunResult {
	return buildpipeline.RunResult{
		Report: []report.Entry{
			{
				Kind:        diag.KindError,
				Text:        "foo.c:10: error: x",
				SourceFile:  "foo.c",
				SourceLine:  10,
				PreContext:  []string{"gcc -c foo.c"},
				PostContext: []string{"note: see above"},
				Seq:         2,
			},
			{
				Kind:       diag.KindWarning,
				Text:       "bar.c:5: warning: y",
				SourceFile: "bar.c",
				SourceLine: 5,
				CapNotice:  true,
				Seq:        4,
			},
		},
		Termination: buildpipeline.Termination{
			State:   buildpipeline.StateExited,
			Code:    2,
			Elapsed: 1500 * time.Millisecond,
		},
		Errors:   1,
		Warnings: 1,
		Lines:    4,
	}
}

func TestPrettyLayout(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResult()
	require.NoError(t, Pretty(&buf, res.Report, PrettyOpts{Context: true}))
	out := buf.String()

	for _, want := range []string{
		"ERROR foo.c:10 (line 2)",
		"    | gcc -c foo.c",
		"  > | foo.c:10: error: x",
		"    | note: see above",
		"WARNING bar.c:5 (line 4)",
		"maximum number of warnings reached",
	} {
		require.Contains(t, out, want)
	}
	require.NotContains(t, out, "\x1b[", "color disabled")
}

func TestPrettyWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Pretty(&buf, sampleResult().Report, PrettyOpts{}))
	require.NotContains(t, buf.String(), "gcc -c foo.c")
}

func TestPrettyFragmentAndWidth(t *testing.T) {
	var buf bytes.Buffer
	entries := []report.Entry{{Kind: diag.KindError, Text: "<Error>\n<Text>a very long fragment line</Text>\n</Error>\n", Fragment: true}}
	require.NoError(t, Pretty(&buf, entries, PrettyOpts{Width: 12}))
	out := buf.String()
	require.Contains(t, out, "ERROR [fragment]")
	require.Contains(t, out, "  > | <Text>a v...")
	require.Equal(t, 4, strings.Count(out, "\n"))
}

func TestJSONRoundTrip(t *testing.T) {
	res := sampleResult()
	res.Termination.Err = errors.New("ignored for exited")
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, BuildReportOutput(res)))

	var out ReportOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Entries, 2)
	require.Equal(t, "error", out.Entries[0].Kind)
	require.Equal(t, 10, out.Entries[0].SourceLine)
	require.True(t, out.Entries[1].CapNotice)
	require.False(t, out.Succeeded)
	require.Equal(t, "exited", out.Termination.State)
	require.Equal(t, int64(1500), out.Termination.ElapsedMS)
}

func TestMsgPackUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MsgPack(&buf, BuildReportOutput(sampleResult())))

	var generic map[string]any
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &generic))
	require.Contains(t, generic, "entries")
	require.Contains(t, generic, "termination")
	require.EqualValues(t, 1, generic["errors"])
}

func TestSarif(t *testing.T) {
	var buf bytes.Buffer
	meta := SarifRunMeta{ToolName: "buildscan", ToolVersion: "test", InvocationArgs: []string{"make", "all"}}
	require.NoError(t, Sarif(&buf, BuildReportOutput(sampleResult()), meta))

	var log sarifLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	require.Equal(t, "2.1.0", log.Version)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]
	require.Equal(t, "make all", run.Invocations[0].CommandLine)
	require.Len(t, run.Results, 2)
	require.Equal(t, "error", run.Results[0].Level)
	require.Equal(t, "foo.c", run.Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI)
	require.Equal(t, 10, run.Results[0].Locations[0].PhysicalLocation.Region.StartLine)
}

func TestRenderPrettySummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatPretty, sampleResult(), RenderOpts{}))
	require.True(t, strings.HasSuffix(buf.String(), "1 error, 1 warning\n"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatPretty, f)
	f, err = ParseFormat("MsgPack")
	require.NoError(t, err)
	require.True(t, f.Binary())
	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestSummary(t *testing.T) {
	require.Equal(t, "0 errors, 2 warnings", Summary(0, 2))
}
