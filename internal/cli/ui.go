package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"lawchat/internal/app"
	"lawchat/internal/conversation"
	"lawchat/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9D2235")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6")).
			Underline(true)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9D2235")).
			Padding(0, 1)
)

func RenderTitle(title string) string {
	return titleStyle.Render(title)
}

// RenderMessage draws one log entry with its index, so feedback commands
// can refer to it.
func RenderMessage(index int, msg model.Message) string {
	var b strings.Builder

	role := userStyle.Render("You")
	if msg.Role == model.RoleAssistant {
		role = assistantStyle.Render("Assistant")
	}
	fmt.Fprintf(&b, "%s %s", mutedStyle.Render(fmt.Sprintf("[%d]", index)), role)
	if !msg.TS.IsZero() {
		fmt.Fprintf(&b, " %s", mutedStyle.Render(msg.TS.Local().Format("15:04")))
	}
	b.WriteString("\n")

	content := msg.Content
	if strings.HasPrefix(content, "Error: ") {
		content = errorStyle.Render(content)
	}
	b.WriteString(content)
	b.WriteString("\n")

	if len(msg.Sources) > 0 {
		b.WriteString(mutedStyle.Render("Sources:"))
		b.WriteString("\n")
		for _, src := range msg.Sources {
			fmt.Fprintf(&b, "  • %s %s\n", sourceStyle.Render(conversation.SourceLabel(src)), mutedStyle.Render(src))
		}
	}

	if msg.Feedback != nil {
		if line := feedbackLine(*msg.Feedback); line != "" {
			b.WriteString(mutedStyle.Render(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func feedbackLine(fb model.Feedback) string {
	var parts []string
	if fb.Correct != nil {
		if *fb.Correct {
			parts = append(parts, "marked correct")
		} else {
			parts = append(parts, "marked incorrect")
		}
	}
	if strings.TrimSpace(fb.Comment) != "" {
		parts = append(parts, fmt.Sprintf("comment %q", fb.Comment))
	}
	if len(parts) == 0 {
		return ""
	}
	state := "not sent"
	if fb.Submitted {
		state = "sent"
	}
	return fmt.Sprintf("feedback: %s (%s)", strings.Join(parts, ", "), state)
}

func RenderTranscript(messages []model.Message) string {
	if len(messages) == 0 {
		return mutedStyle.Render("No messages.") + "\n"
	}
	var b strings.Builder
	for i, msg := range messages {
		b.WriteString(RenderMessage(i, msg))
		b.WriteString("\n")
	}
	return b.String()
}

func RenderSessionList(list *app.SessionList) string {
	var b strings.Builder
	if len(list.Rows) == 0 {
		b.WriteString(mutedStyle.Render("No sessions."))
		b.WriteString("\n")
	}
	for _, row := range list.Rows {
		count := "-"
		if row.Count != nil {
			count = fmt.Sprintf("%d", *row.Count)
		}
		fmt.Fprintf(&b, "%-36s  %5s msgs  %s  %s\n",
			row.SID,
			count,
			formatDate(row.CreatedAt),
			formatDate(row.UpdatedAt),
		)
	}
	b.WriteString(mutedStyle.Render(list.Pager.Label()))
	b.WriteString("\n")
	return b.String()
}

func RenderOverrides(rows []model.Override) string {
	if len(rows) == 0 {
		return mutedStyle.Render("No overrides.") + "\n"
	}
	var b strings.Builder
	for _, o := range rows {
		flags := []string{}
		if o.Enabled {
			flags = append(flags, "enabled")
		} else {
			flags = append(flags, "disabled")
		}
		if o.Force {
			flags = append(flags, "forced")
		}
		fmt.Fprintf(&b, "%s %s\n", assistantStyle.Render(o.Key()), mutedStyle.Render(strings.Join(flags, ", ")))
		fmt.Fprintf(&b, "  Q: %s\n  A: %s\n", o.Question, o.Answer)
		for _, src := range o.Sources {
			fmt.Fprintf(&b, "  • %s\n", src)
		}
	}
	return b.String()
}

func RenderComparison(results []model.ModelResult) string {
	var blocks []string
	for _, r := range results {
		var b strings.Builder
		b.WriteString(assistantStyle.Render(r.Model))
		if r.LatencyMs > 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  %dms", r.LatencyMs)))
		}
		b.WriteString("\n")
		if r.Error != "" {
			b.WriteString(errorStyle.Render("Error: " + r.Error))
		} else {
			b.WriteString(r.Answer)
		}
		for _, src := range r.Sources {
			fmt.Fprintf(&b, "\n  • %s", conversation.SourceLabel(src))
		}
		blocks = append(blocks, boxStyle.Render(b.String()))
	}
	return strings.Join(blocks, "\n") + "\n"
}

func RenderUsers(users []model.User) string {
	if len(users) == 0 {
		return mutedStyle.Render("No users.") + "\n"
	}
	var b strings.Builder
	for _, u := range users {
		fmt.Fprintf(&b, "%-24s %-8s created %s  last login %s\n", u.Username, u.Role, formatDate(u.CreatedAt), formatDate(u.LastLogin))
	}
	return b.String()
}

func RenderError(err error) string {
	return errorStyle.Render(err.Error())
}

func formatDate(ts model.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}
