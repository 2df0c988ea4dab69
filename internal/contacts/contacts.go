// Package contacts extracts phone numbers, emails, Telegram and WhatsApp handles from free text.
package contacts

import (
	"regexp"
	"sort"
	"strings"

	"lead_bot/internal/model"
)

var (
	phoneRe    = regexp.MustCompile(`(?:(?:\+|00)\d{1,3})?[\s().-]*\d[\d\s().-]{6,}\d`)
	emailRe    = regexp.MustCompile(`[A-Za-z0-9_.+-]+@[A-Za-z0-9-]+\.[A-Za-z0-9.-]+`)
	telegramRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9_.+-])@([A-Za-z0-9_]{4,})|t\.me/([A-Za-z0-9_]{4,})`)
	whatsappRe = regexp.MustCompile(`(?i)(?:wa\.me/|whatsapp\.com/|whatsapp)\s*([+\d][\d\s().-]{6,}\d)?`)

	separators = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "(", "", ")", "", ".", "", "-", "")
)

const minPhoneDigits = 7

// Extract returns the contact handles found in text. Every list is
// deduplicated and sorted, so repeated calls yield identical results.
func Extract(text string) model.Contacts {
	phones := make(map[string]struct{})
	for _, m := range phoneRe.FindAllString(text, -1) {
		if cleaned := stripSeparators(m); countDigits(cleaned) >= minPhoneDigits {
			phones[cleaned] = struct{}{}
		}
	}

	emails := make(map[string]struct{})
	for _, m := range emailRe.FindAllString(text, -1) {
		emails[strings.ToLower(strings.TrimRight(m, ".-"))] = struct{}{}
	}

	telegram := make(map[string]struct{})
	for _, m := range telegramRe.FindAllStringSubmatch(text, -1) {
		handle := m[1]
		if handle == "" {
			handle = m[2]
		}
		telegram["@"+strings.ToLower(handle)] = struct{}{}
	}

	whatsapp := make(map[string]struct{})
	for _, m := range whatsappRe.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			whatsapp[stripSeparators(m[1])] = struct{}{}
		}
	}

	return model.Contacts{
		Phone:    sorted(phones),
		Email:    sorted(emails),
		Telegram: sorted(telegram),
		WhatsApp: sorted(whatsapp),
	}
}

func stripSeparators(s string) string {
	return separators.Replace(s)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
