package diagfmt

import (
	"buildscan/internal/buildpipeline"
	"buildscan/internal/report"
)

// EntryJSON is the serialized form of a report entry.
type EntryJSON struct {
	Kind        string   `json:"kind"`
	Text        string   `json:"text"`
	SourceFile  string   `json:"source_file,omitempty"`
	SourceLine  int      `json:"source_line,omitempty"`
	PreContext  []string `json:"pre_context,omitempty"`
	PostContext []string `json:"post_context,omitempty"`
	CapNotice   bool     `json:"cap_notice,omitempty"`
	Fragment    bool     `json:"fragment,omitempty"`
	Synthetic   bool     `json:"synthetic,omitempty"`
	Seq         uint64   `json:"seq,omitempty"`
}

// TerminationJSON is the serialized form of the process outcome.
type TerminationJSON struct {
	State     string `json:"state"`
	Code      int    `json:"code"`
	Signal    string `json:"signal,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// ReportOutput is the root object of the json and msgpack renderers.
type ReportOutput struct {
	Entries     []EntryJSON      `json:"entries"`
	Errors      uint             `json:"errors"`
	Warnings    uint             `json:"warnings"`
	Lines       uint64           `json:"lines"`
	Succeeded   bool             `json:"succeeded"`
	Termination *TerminationJSON `json:"termination,omitempty"`
	RuleIssues  []string         `json:"rule_issues,omitempty"`
}

// BuildReportOutput converts a run result into its serializable form.
func BuildReportOutput(res buildpipeline.RunResult) ReportOutput {
	out := ReportOutput{
		Entries:   make([]EntryJSON, 0, len(res.Report)),
		Errors:    res.Errors,
		Warnings:  res.Warnings,
		Lines:     res.Lines,
		Succeeded: res.Succeeded(),
	}
	for _, e := range res.Report {
		out.Entries = append(out.Entries, entryJSON(e))
	}
	term := res.Termination
	out.Termination = &TerminationJSON{
		State:     term.State.String(),
		Code:      term.Code,
		Signal:    term.Signal,
		ElapsedMS: term.Elapsed.Milliseconds(),
	}
	if term.Err != nil {
		out.Termination.Error = term.Err.Error()
	}
	for _, issue := range res.RuleIssues {
		out.RuleIssues = append(out.RuleIssues, issue.Error())
	}
	return out
}

func entryJSON(e report.Entry) EntryJSON {
	return EntryJSON{
		Kind:        e.Kind.String(),
		Text:        e.Text,
		SourceFile:  e.SourceFile,
		SourceLine:  e.SourceLine,
		PreContext:  e.PreContext,
		PostContext: e.PostContext,
		CapNotice:   e.CapNotice,
		Fragment:    e.Fragment,
		Synthetic:   e.Synthetic,
		Seq:         e.Seq,
	}
}
