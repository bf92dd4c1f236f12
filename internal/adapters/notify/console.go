// Package notify implements ports.Notifier for operator-facing alerts.
// Console prints subject/body pairs to stdout, using tablewriter to format
// the log line into an aligned three-column (time, subject, detail) layout, grounded on the
// teacher's original Console notifier (same package, same dependency).
package notify

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Console writes notifications to an io.Writer, stdout by default.
type Console struct {
	out io.Writer
}

// NewConsole builds a Console writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter builds a Console writing to w, for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify renders subject and body as a one-row table so operators scanning
// a scrolling terminal can pick out the subject column at a glance.
func (c *Console) Notify(_ context.Context, subject, body string) error {
	table := tablewriter.NewWriter(c.out)
	table.Header("time", "subject", "detail")
	table.Append(time.Now().Format("15:04:05"), subject, body)
	table.Render()
	return nil
}
