// Package templates holds the HTML components served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// StageCount is one row of the stage table.
type StageCount struct {
	Stage   string
	Rows    int64
	Pending int64
}

// RunRow is one row of the recent runs table.
type RunRow struct {
	Process  string
	Started  time.Time
	Duration time.Duration
	Records  int32
	Success  bool
	Error    string
}

// StatusParams feeds the status page.
type StatusParams struct {
	Stages      []StageCount
	Runs        []RunRow
	GeneratedAt time.Time
	Error       string
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>stagepipe</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;margin-bottom:2rem}
th,td{padding:.35rem .8rem;border-bottom:1px solid #e5e7eb;text-align:left}
td.num{text-align:right;font-variant-numeric:tabular-nums}
.ok{color:#047857}.fail{color:#b91c1c}
.alert{background:#fef2f2;border:1px solid #fecaca;padding:.6rem;margin-bottom:1rem}
</style>
</head>
<body>
<h1>stagepipe</h1>
`

// StatusPage renders stage counts and recent runs.
func StatusPage(p StatusParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}

		ew.write(pageHead)
		if p.Error != "" {
			ew.write(`<div class="alert">` + templ.EscapeString(p.Error) + `</div>`)
		}

		ew.write("<h2>Stages</h2>\n<table>\n<tr><th>Stage</th><th>Rows</th><th>Waiting for next stage</th></tr>\n")
		for _, s := range p.Stages {
			ew.write(fmt.Sprintf(`<tr><td>%s</td><td class="num">%d</td><td class="num">%d</td></tr>`+"\n",
				templ.EscapeString(s.Stage), s.Rows, s.Pending))
		}
		ew.write("</table>\n")

		ew.write("<h2>Recent runs</h2>\n")
		if len(p.Runs) == 0 {
			ew.write("<p>No runs recorded yet.</p>\n")
		} else {
			ew.write("<table>\n<tr><th>Process</th><th>Started</th><th>Duration</th><th>Records</th><th>Result</th></tr>\n")
			for _, r := range p.Runs {
				ew.write(runRow(r))
			}
			ew.write("</table>\n")
		}

		if !p.GeneratedAt.IsZero() {
			ew.write("<p><small>Generated " + templ.EscapeString(p.GeneratedAt.Format(time.RFC3339)) + "</small></p>\n")
		}
		ew.write("</body>\n</html>\n")
		return ew.err
	})
}

func runRow(r RunRow) string {
	result := `<span class="ok">ok</span>`
	if !r.Success {
		result = `<span class="fail">failed</span>`
		if r.Error != "" {
			result += ": " + templ.EscapeString(r.Error)
		}
	}
	return "<tr><td>" + templ.EscapeString(r.Process) + "</td>" +
		"<td>" + templ.EscapeString(r.Started.Format("2006-01-02 15:04:05")) + "</td>" +
		`<td class="num">` + templ.EscapeString(r.Duration.Round(time.Millisecond).String()) + "</td>" +
		`<td class="num">` + strconv.Itoa(int(r.Records)) + "</td>" +
		"<td>" + result + "</td></tr>\n"
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) write(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}
