// Package export renders the lead history as a CSV document.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"lead_bot/internal/model"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Header is the fixed column order of the export.
var Header = []string{
	"id", "created_at", "source_id", "source_item_id", "link",
	"score", "matched_keywords", "contacts", "status", "source_label",
}

// WriteCSV writes a header row followed by one row per lead. List-valued
// columns are encoded as JSON.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, l := range leads {
		row, err := record(l)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write lead %d: %w", l.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func record(l model.Lead) ([]string, error) {
	keywords := l.MatchedKeywords
	if keywords == nil {
		keywords = []string{}
	}
	matched, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("encode keywords of lead %d: %w", l.ID, err)
	}
	contacts, err := json.Marshal(contactsJSON(l.Contacts))
	if err != nil {
		return nil, fmt.Errorf("encode contacts of lead %d: %w", l.ID, err)
	}

	return []string{
		strconv.FormatInt(l.ID, 10),
		l.CreatedAt.UTC().Format(timeLayout),
		strconv.FormatInt(l.SourceID, 10),
		l.SourceItemID,
		l.Link,
		strconv.Itoa(l.Score),
		string(matched),
		string(contacts),
		string(l.Status),
		l.SourceLabel,
	}, nil
}

// contactsJSON drops empty kinds so the column stays short.
func contactsJSON(c model.Contacts) map[string][]string {
	out := make(map[string][]string)
	for key, values := range map[string][]string{
		"phone":    c.Phone,
		"email":    c.Email,
		"telegram": c.Telegram,
		"whatsapp": c.WhatsApp,
	} {
		if len(values) > 0 {
			out[key] = values
		}
	}
	return out
}
