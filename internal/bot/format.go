package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/model"
)

const (
	snippetRunes = 400
	none         = "—"
)

// StatusReport is the data shown by /status.
type StatusReport struct {
	Settings   model.Settings
	Keywords   int
	Sources    int
	LeadsToday int
}

// FormatLead renders a lead notification.
func FormatLead(lead *model.Lead) string {
	matched := none
	if len(lead.MatchedKeywords) > 0 {
		matched = strings.Join(lead.MatchedKeywords, ", ")
	}
	link := lead.Link
	if link == "" {
		link = none
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New lead #%d | Score: %d\n", lead.ID, lead.Score)
	fmt.Fprintf(&b, "Source: %s\n", lead.SourceLabel)
	fmt.Fprintf(&b, "Matched: %s\n", matched)
	fmt.Fprintf(&b, "Text: %s\n", Snippet(lead.Text, snippetRunes))
	fmt.Fprintf(&b, "Contacts: %s\n", FormatContacts(lead.Contacts))
	fmt.Fprintf(&b, "Link: %s", link)
	return b.String()
}

// Snippet collapses whitespace and cuts s to at most limit runes, marking
// the cut with an ellipsis.
func Snippet(s string, limit int) string {
	compact := strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(compact) <= limit {
		return compact
	}
	return string([]rune(compact)[:max(0, limit-1)]) + "…"
}

// FormatContacts renders the non-empty contact kinds on one line.
func FormatContacts(c model.Contacts) string {
	var parts []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, label+": "+strings.Join(values, ", "))
		}
	}
	add("phone", c.Phone)
	add("telegram", c.Telegram)
	add("email", c.Email)
	add("whatsapp", c.WhatsApp)
	if len(parts) == 0 {
		return none
	}
	return strings.Join(parts, "; ")
}

// LeadKeyboard returns the triage buttons attached to a lead notification.
func LeadKeyboard(leadID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(leadID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("In progress", cbLeadStatus+id+":"+string(model.StatusInProgress)),
			tgbotapi.NewInlineKeyboardButtonData("Cold", cbLeadStatus+id+":"+string(model.StatusCold)),
			tgbotapi.NewInlineKeyboardButtonData("Trash", cbLeadStatus+id+":"+string(model.StatusTrash)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Add stop word", cbLeadNeg+id),
		),
	)
}

// FormatStatus renders the /status report.
func FormatStatus(r StatusReport) string {
	monitoring := "OFF"
	if r.Settings.MonitoringEnabled {
		monitoring = "ON"
	}
	lastCheck := none
	if r.Settings.LastCheckAt != nil {
		lastCheck = r.Settings.LastCheckAt.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	var b strings.Builder
	b.WriteString("Status\n")
	fmt.Fprintf(&b, "Monitoring: %s\n", monitoring)
	fmt.Fprintf(&b, "Interval: %ds\n", int(r.Settings.PollInterval/time.Second))
	fmt.Fprintf(&b, "Min score: %d\n", r.Settings.MinScore)
	fmt.Fprintf(&b, "Max leads per cycle: %d\n", r.Settings.MaxResultsPerCycle)
	fmt.Fprintf(&b, "Language: %s\n", r.Settings.LangFilter)
	fmt.Fprintf(&b, "Target: %s\n", FormatTarget(r.Settings.Target))
	fmt.Fprintf(&b, "Keywords: %d\n", r.Keywords)
	fmt.Fprintf(&b, "Sources (RSS): %d\n", r.Sources)
	fmt.Fprintf(&b, "Last check: %s\n", lastCheck)
	fmt.Fprintf(&b, "Leads today: %d", r.LeadsToday)
	return b.String()
}

// FormatTarget describes a delivery target.
func FormatTarget(t model.DeliveryTarget) string {
	if t.Kind == model.TargetChannel {
		return fmt.Sprintf("channel %d", t.ChannelID)
	}
	return "admin"
}

// FormatKeywordList renders the keyword list.
func FormatKeywordList(keywords []model.Keyword) string {
	if len(keywords) == 0 {
		return "No keywords yet. Use /addkw [RU|EN|BOTH] <phrase> to add one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Keywords (%d):\n", len(keywords))
	for _, kw := range keywords {
		fmt.Fprintf(&b, "\n%s [%s]", kw.Phrase, kw.Lang)
	}
	return b.String()
}

// FormatStopList renders the stop list.
func FormatStopList(phrases []string) string {
	if len(phrases) == 0 {
		return "The stop list is empty. Use /addstop <phrase> to add one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Stop words (%d):\n", len(phrases))
	for _, p := range phrases {
		fmt.Fprintf(&b, "\n%s", p)
	}
	return b.String()
}

// FormatSourceList renders the feed list.
func FormatSourceList(sources []model.Source) string {
	if len(sources) == 0 {
		return "No sources yet. Use /addsource <url> to add an RSS or Atom feed."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Sources (%d):\n", len(sources))
	for _, s := range sources {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		fmt.Fprintf(&b, "\n#%d %s\n   %s", s.ID, title, s.URL)
	}
	return b.String()
}
