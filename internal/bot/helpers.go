package bot

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"mvdan.cc/xurls/v2"

	"feedybot/internal/domain"
	"feedybot/internal/poller"
	"feedybot/internal/render"
)

const (
	maxCategoryNameLen = 32
	maxFeedsDisplayed  = 10
)

var (
	categoryDisallowedChars = regexp.MustCompile(`[^a-zA-Z0-9\s&-]`)
	strictURLs              = xurls.Strict()
)

// parseCommand splits "/cmd@bot args" into a lower case command name and the
// trimmed arguments.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)

	head, args, _ := strings.Cut(text, " ")
	if nl := strings.IndexByte(head, '\n'); nl >= 0 {
		args = head[nl+1:] + " " + args
		head = head[:nl]
	}

	command, ok := strings.CutPrefix(head, "/")
	if !ok {
		return "", ""
	}

	command, _, _ = strings.Cut(command, "@")

	return strings.ToLower(command), strings.TrimSpace(args)
}

// sanitizeCategory keeps letters, digits, spaces, '&' and '-', collapses
// whitespace and bounds the length.
func sanitizeCategory(name string) string {
	name = categoryDisallowedChars.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")

	if utf8.RuneCountInString(name) > maxCategoryNameLen {
		name = strings.TrimSpace(string([]rune(name)[:maxCategoryNameLen]))
	}

	return name
}

// parseCategories reads a comma separated category list, dropping empty and
// repeated names.
func parseCategories(args string) []string {
	var categories []string

	for _, part := range strings.Split(args, ",") {
		category := sanitizeCategory(part)
		if category == "" || slices.Contains(categories, category) {
			continue
		}

		categories = append(categories, category)
	}

	return categories
}

// splitCategoryAndURL extracts the first URL from args and treats the rest as
// the category name.
func splitCategoryAndURL(args string) (string, string) {
	url := strictURLs.FindString(args)
	if url == "" {
		return sanitizeCategory(args), ""
	}

	return sanitizeCategory(strings.Replace(args, url, "", 1)), url
}

func helpText() string {
	sections := []struct {
		title string
		lines [][2]string
	}{
		{"📝 Setup", [][2]string{
			{"/setup [cat1, cat2]", "Choose your categories"},
			{"/subscribe <cat1, cat2>", "Follow categories"},
			{"/unsubscribe <category>", "Stop following a category"},
			{"/addcategory <name>", "Create a category"},
			{"/delcategory <name>", "Delete a category with its feeds"},
			{"/addfeed <category> <url>", "Add an RSS feed to a category"},
			{"/removefeed <category> <url>", "Remove a feed from a category"},
		}},
		{"📊 Information", [][2]string{
			{"/categories", "List all categories"},
			{"/listfeeds <category>", "List feeds of a category"},
			{"/myfeeds", "Show your subscribed feeds"},
			{"/stats", "View your statistics"},
		}},
		{"🤖 Summary and filters", [][2]string{
			{"/summary", "Get an AI summary of your unread posts"},
			{"/addkeyword <word>", "Only show posts containing the word"},
			{"/removekeyword <word>", "Remove a keyword filter"},
			{"/keywords", "List your keyword filters"},
		}},
		{"ℹ️ Other", [][2]string{
			{"/check [category|url]", "Check feeds now"},
			{"/help", "Show this message"},
		}},
	}

	var b strings.Builder
	b.WriteString("🤖 *FeedyBot*\n")
	b.WriteString(render.EscapeV2("Stay updated with RSS feeds and AI-powered summaries!"))
	b.WriteString("\n")

	for _, section := range sections {
		fmt.Fprintf(&b, "\n*%s*\n", render.EscapeV2(section.title))

		for _, line := range section.lines {
			fmt.Fprintf(&b, "`%s` %s\n", line[0], render.EscapeV2("- "+line[1]))
		}
	}

	return b.String()
}

func categoryListText(categories []string, subscribed []string) string {
	if len(categories) == 0 {
		return render.EscapeV2("No categories available. Create one with /addcategory <name>.")
	}

	var b strings.Builder
	b.WriteString("📂 *Categories*\n\n")

	for _, category := range slices.Sorted(slices.Values(categories)) {
		if slices.Contains(subscribed, category) {
			fmt.Fprintf(&b, "✅ *%s*\n", render.EscapeV2(category))
		} else {
			fmt.Fprintf(&b, "⬜ %s\n", render.EscapeV2(category))
		}
	}

	return b.String()
}

func feedListText(category string, feeds []string) string {
	if len(feeds) == 0 {
		return render.EscapeV2(fmt.Sprintf("No feeds in %s.", category))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📡 *Feeds in %s* \\(%d\\)\n\n", render.EscapeV2(category), len(feeds))

	for i, feed := range feeds {
		if i == maxFeedsDisplayed {
			b.WriteString(render.EscapeV2(fmt.Sprintf("\n... and %d more", len(feeds)-maxFeedsDisplayed)))
			b.WriteString("\n")
			break
		}

		fmt.Fprintf(&b, "%d\\. %s\n", i+1, render.EscapeV2(feed))
	}

	return b.String()
}

func myFeedsText(counts map[string]int, categories []string) string {
	var b strings.Builder
	b.WriteString("📰 *Your subscribed feeds*\n\n")

	total := 0
	for _, category := range categories {
		total += counts[category]
		fmt.Fprintf(&b, "📂 *%s*: %d feeds\n", render.EscapeV2(category), counts[category])
	}

	b.WriteString("\n")
	b.WriteString(render.EscapeV2(fmt.Sprintf("Total: %d feeds across %d categories", total, len(categories))))

	return b.String()
}

func keywordsText(keywords []string) string {
	if len(keywords) == 0 {
		return render.EscapeV2("You have no keyword filters, every post is shown. Add one with /addkeyword <word>.")
	}

	return "🔑 *Keywords*\n\n" + render.EscapeV2(strings.Join(keywords, ", ")) + "\n\n" +
		render.EscapeV2("Only posts containing at least one keyword are shown.")
}

func statsText(stats *domain.SubscriberStats) string {
	s := stats.Subscriber

	name := s.Username
	if name == "" {
		name = fmt.Sprintf("user %d", s.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Statistics for %s*\n\n", render.EscapeV2(name))
	fmt.Fprintf(&b, "📂 *Categories:* %d subscribed\n", len(s.Categories))
	fmt.Fprintf(&b, "📡 *Feeds:* %d total\n", stats.FeedCount)
	fmt.Fprintf(&b, "📬 *Unread posts:* %d pending\n", stats.UnreadCount)

	if len(s.Keywords) > 0 {
		fmt.Fprintf(&b, "🔑 *Keywords:* %s\n", render.EscapeV2(strings.Join(s.Keywords, ", ")))
	}

	b.WriteString("\n")
	b.WriteString(render.EscapeV2("Member since " + s.CreatedAt.UTC().Format(time.DateOnly)))

	return b.String()
}

func checkResultText(result poller.Result) string {
	scope := "all feeds"
	switch {
	case result.FeedURL != "":
		scope = result.FeedURL
	case result.Category != "":
		scope = result.Category
	}

	return render.EscapeV2(fmt.Sprintf(
		"✅ Feed check complete for %s! Checked %d feeds, %d failed, %d new posts.",
		scope,
		result.FeedsChecked,
		result.FeedsFailed,
		result.NewEntries,
	))
}
