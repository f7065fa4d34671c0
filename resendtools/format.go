package resendtools

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

// PageArgs is embedded by every list tool.
type PageArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of items to return (1-100)." jsonschema:"minimum=1,maximum=100"`
	After  string `json:"after,omitempty" jsonschema_description:"Return items after this id. Use the cursor printed by the previous page."`
	Before string `json:"before,omitempty" jsonschema_description:"Return items before this id."`
}

func (p PageArgs) listOptions() (*resend.ListOptions, error) {
	if p.After != "" && p.Before != "" {
		return nil, fmt.Errorf("after and before are mutually exclusive")
	}
	if p.Limit < 0 || p.Limit > 100 {
		return nil, fmt.Errorf("limit must be between 1 and 100")
	}
	return &resend.ListOptions{Limit: p.Limit, After: p.After, Before: p.Before}, nil
}

func ago(ts resend.Timestamp) string {
	if ts == "" {
		return "unknown"
	}
	if v, ok := ts.Time(); ok {
		return humanize.Time(v)
	}
	return string(ts)
}

func joinOr(v []string, empty string) string {
	if len(v) == 0 {
		return empty
	}
	return strings.Join(v, ", ")
}

// writeList renders one line per item and a pagination footer.
func writeList[T any](w mcpservice.ToolResponseWriter, noun string, page *resend.List[T], line func(T) string, id func(T) string) error {
	if len(page.Data) == 0 {
		return w.AppendText(fmt.Sprintf("No %s found.", noun))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s:\n", len(page.Data), noun)
	for _, item := range page.Data {
		b.WriteString("- ")
		b.WriteString(line(item))
		b.WriteByte('\n')
	}
	if page.HasMore {
		fmt.Fprintf(&b, "More results available. Pass after=%q to fetch the next page.", id(page.Data[len(page.Data)-1]))
	}
	return w.AppendText(strings.TrimRight(b.String(), "\n"))
}

func invalid(w mcpservice.ToolResponseWriter, format string, a ...any) error {
	w.SetError(true)
	return w.AppendText(fmt.Sprintf(format, a...))
}

func removed(w mcpservice.ToolResponseWriter, noun, id string, d *resend.Deleted) error {
	if d != nil && !d.Deleted {
		return invalid(w, "%s %s was not removed.", noun, id)
	}
	return w.AppendText(fmt.Sprintf("Removed %s %s.", noun, id))
}
