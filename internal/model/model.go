// Package model defines the domain types used across the application.
package model

import "time"

// Lang is the language tag of a keyword or of the profile's language filter.
type Lang string

// Supported language tags.
const (
	LangRU   Lang = "RU"
	LangEN   Lang = "EN"
	LangBoth Lang = "BOTH"
)

// ParseLang converts user input into a Lang. Unknown values report false.
func ParseLang(s string) (Lang, bool) {
	switch Lang(s) {
	case LangRU, LangEN, LangBoth:
		return Lang(s), true
	}
	return "", false
}

// Source is a syndication feed the monitor polls.
type Source struct {
	ID    int64
	URL   string
	Title string
}

// Label returns the human-readable name attached to leads from this source.
func (s Source) Label() string {
	if s.Title != "" {
		return "Feed: " + s.Title
	}
	return "Feed: " + s.URL
}

// Keyword is a positive interest phrase.
type Keyword struct {
	ID     int64
	Phrase string
	Lang   Lang
}

// TargetKind selects where leads are delivered.
type TargetKind string

// Supported delivery targets.
const (
	TargetAdmin   TargetKind = "ADMIN"
	TargetChannel TargetKind = "CHANNEL"
)

// DeliveryTarget is the resolved destination of lead notifications.
// ChannelID is only meaningful for TargetChannel.
type DeliveryTarget struct {
	Kind      TargetKind
	ChannelID int64
}

// InterestProfile is the consistent snapshot a monitoring cycle works with.
type InterestProfile struct {
	Keywords           []Keyword
	NegativeKeywords   []string
	MinScore           int
	MaxResultsPerCycle int
	LangFilter         Lang
	Target             DeliveryTarget
}

// Settings holds the operator-controlled knobs persisted in storage.
type Settings struct {
	MonitoringEnabled  bool
	PollInterval       time.Duration
	MinScore           int
	MaxResultsPerCycle int
	LangFilter         Lang
	Target             DeliveryTarget
	LastCheckAt        *time.Time
}

// FeedItem is a candidate entry produced by the fetcher. It is never persisted.
type FeedItem struct {
	ID          string
	Text        string
	Link        string
	PublishedAt int64 // unix seconds, 0 when the feed did not say
}

// LeadStatus is the operator's triage state of a lead.
type LeadStatus string

// Lead statuses.
const (
	StatusNew        LeadStatus = "NEW"
	StatusInProgress LeadStatus = "IN_PROGRESS"
	StatusCold       LeadStatus = "COLD"
	StatusTrash      LeadStatus = "TRASH"
)

// ParseLeadStatus converts a callback value into a LeadStatus.
func ParseLeadStatus(s string) (LeadStatus, bool) {
	switch LeadStatus(s) {
	case StatusNew, StatusInProgress, StatusCold, StatusTrash:
		return LeadStatus(s), true
	}
	return "", false
}

// Contacts are the handles extracted from a lead's text.
type Contacts struct {
	Phone    []string `json:"phone"`
	Email    []string `json:"email"`
	Telegram []string `json:"telegram"`
	WhatsApp []string `json:"whatsapp"`
}

// Empty reports whether no contact of any kind was found.
func (c Contacts) Empty() bool {
	return len(c.Phone) == 0 && len(c.Email) == 0 && len(c.Telegram) == 0 && len(c.WhatsApp) == 0
}

// Lead is a stored item that passed scoring and was not a duplicate.
type Lead struct {
	ID              int64
	CreatedAt       time.Time
	SourceID        int64
	SourceItemID    string
	Text            string
	Fingerprint     string
	Link            string
	Score           int
	MatchedKeywords []string
	Contacts        Contacts
	Status          LeadStatus
	SourceLabel     string
}
