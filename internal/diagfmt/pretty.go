package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"buildscan/internal/diag"
	"buildscan/internal/report"
)

type palette struct {
	err     *color.Color
	warn    *color.Color
	loc     *color.Color
	context *color.Color
	notice  *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:     color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		loc:     color.New(color.Bold),
		context: color.New(color.Faint),
		notice:  color.New(color.FgMagenta),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.loc, p.context, p.notice} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty writes entries in a human-readable layout:
//
//	ERROR foo.c:10 (line 1)
//	    | preceding line
//	  > | foo.c:10: error: x
//	    | following line
func Pretty(w io.Writer, entries []report.Entry, opts PrettyOpts) error {
	p := newPalette(opts.Color)
	for i, e := range entries {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := prettyEntry(w, e, p, opts); err != nil {
			return err
		}
	}
	return nil
}

func prettyEntry(w io.Writer, e report.Entry, p palette, opts PrettyOpts) error {
	sev := p.warn
	if e.Kind == diag.KindError {
		sev = p.err
	}
	header := sev.Sprint(strings.ToUpper(e.Kind.String()))
	switch {
	case e.Fragment:
		header += " " + p.context.Sprint("[fragment]")
	case e.Synthetic:
		header += " " + p.context.Sprint("[build]")
	}
	if e.SourceFile != "" {
		loc := e.SourceFile
		if e.SourceLine > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.SourceLine)
		}
		header += " " + p.loc.Sprint(loc)
	}
	if e.Seq > 0 && !e.Fragment {
		header += " " + p.context.Sprintf("(line %d)", e.Seq)
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteByte('\n')
	if opts.Context {
		for _, line := range e.PreContext {
			sb.WriteString(p.context.Sprint("    | " + clip(line, opts.Width)))
			sb.WriteByte('\n')
		}
	}
	for _, line := range strings.Split(strings.TrimRight(e.Text, "\n"), "\n") {
		sb.WriteString("  > | ")
		sb.WriteString(clip(line, opts.Width))
		sb.WriteByte('\n')
	}
	if opts.Context {
		for _, line := range e.PostContext {
			sb.WriteString(p.context.Sprint("    | " + clip(line, opts.Width)))
			sb.WriteByte('\n')
		}
	}
	if e.CapNotice {
		sb.WriteString(p.notice.Sprintf("  maximum number of %ss reached, further %ss are not reported", e.Kind, e.Kind))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func clip(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

// Summary returns a one-line count such as "2 errors, 1 warning".
func Summary(errors, warnings uint) string {
	return fmt.Sprintf("%d %s, %d %s", errors, plural(errors, "error"), warnings, plural(warnings, "warning"))
}

func plural(n uint, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
