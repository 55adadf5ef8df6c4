package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/history"
	"github.com/GChainey/substackToKindle/internal/views/detail"
)

const (
	titleWidth  = 48
	titlesWidth = 60
)

func snip(col string, width int) string {
	return text.Snip(col, width, "…")
}

func newTable(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)
	return tw
}

// postsTable lists an archive with a footer totalling reading time and paid
// posts. partial marks a load that ended before the archive did.
func postsTable(subdomain string, posts []client.Post, partial bool) string {
	title := fmt.Sprintf("%s: %d posts", subdomain, len(posts))
	if partial {
		title += " (incomplete)"
	}
	tw := newTable(title)
	tw.AppendHeader(table.Row{"#", "Title", "Published", "Read", "Audience", "Slug"})

	var minutes, paid int
	for i, p := range posts {
		m := detail.ReadingMinutes(p.WordCount)
		minutes += m
		audience := "free"
		if p.Paid() {
			audience = "paid"
			paid++
		}
		tw.AppendRow(table.Row{i + 1, p.Title, detail.FormatDate(p.Date), readTime(m), audience, p.Slug})
	}
	tw.AppendFooter(table.Row{"", "", "", readTime(minutes), fmt.Sprintf("%d paid", paid), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Title", WidthMax: titleWidth, WidthMaxEnforcer: snip},
		{Name: "Read", Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}

func readTime(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
	}
}

// historyTable lists deliveries newest first, as stored.
func historyTable(records []history.Record) string {
	tw := newTable(fmt.Sprintf("%d deliveries", len(records)))
	tw.AppendHeader(table.Row{"When", "Newsletter", "Posts", "Delivery", "Titles"})
	for _, r := range records {
		delivery := string(r.Method)
		if r.Method == history.MethodKindle {
			delivery += " → " + r.KindleEmail
		}
		tw.AppendRow(table.Row{
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			r.Subdomain,
			r.PostCount,
			delivery,
			strings.Join(r.PostTitles, ", "),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Posts", Align: text.AlignRight},
		{Name: "Titles", WidthMax: titlesWidth, WidthMaxEnforcer: snip},
	})
	return tw.Render()
}
