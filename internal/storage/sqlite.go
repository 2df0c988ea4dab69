package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"lead_bot/internal/model"
	"lead_bot/migrations"
)

const (
	timeLayout = "2006-01-02T15:04:05Z"

	sourceTypeFeed     = "feed"
	defaultExportLimit = 1000
)

// Settings keys.
const (
	keyMonitoringEnabled = "monitoring_enabled"
	keyPollInterval      = "poll_interval"
	keyMinScore          = "min_score"
	keyMaxResults        = "max_results"
	keyLangFilter        = "lang_filter"
	keyTarget            = "target"
	keyChannelID         = "channel_id"
	keyLastCheckAt       = "last_check_at"
)

// Fallbacks for settings rows that are missing or unparsable.
const (
	fallbackPollInterval = 60 * time.Second
	fallbackMinScore     = 60
	fallbackMaxResults   = 10
)

const leadColumns = `id, created_at, source_id, source_item_id, text, fingerprint, link,
	score, matched_keywords, contacts, status, source_label`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// EnsureDefaults writes every settings key that is not stored yet.
// Existing values are never touched.
func (s *SQLite) EnsureDefaults(ctx context.Context, defaults model.Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range encodeSettings(defaults) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value,
		); err != nil {
			return fmt.Errorf("insert default %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// GetSettings returns the current operator settings.
func (s *SQLite) GetSettings(ctx context.Context) (*model.Settings, error) {
	values, err := readSettings(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return decodeSettings(values), nil
}

// IsMonitoringEnabled reports whether automatic cycles should run.
func (s *SQLite) IsMonitoringEnabled(ctx context.Context) (bool, error) {
	v, err := s.getSetting(ctx, keyMonitoringEnabled)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SetMonitoringEnabled switches automatic cycles on or off.
func (s *SQLite) SetMonitoringEnabled(ctx context.Context, enabled bool) error {
	return s.setSetting(ctx, keyMonitoringEnabled, strconv.Itoa(boolToInt(enabled)))
}

// SetPollInterval stores the scheduler period, rounded down to whole seconds.
func (s *SQLite) SetPollInterval(ctx context.Context, d time.Duration) error {
	if d < time.Second {
		return fmt.Errorf("poll interval %s is below one second", d)
	}
	return s.setSetting(ctx, keyPollInterval, strconv.FormatInt(int64(d/time.Second), 10))
}

// SetMinScore stores the delivery threshold.
func (s *SQLite) SetMinScore(ctx context.Context, score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("min score %d out of range 0..100", score)
	}
	return s.setSetting(ctx, keyMinScore, strconv.Itoa(score))
}

// SetMaxResults stores the per-cycle delivery quota.
func (s *SQLite) SetMaxResults(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("max results %d must be positive", n)
	}
	return s.setSetting(ctx, keyMaxResults, strconv.Itoa(n))
}

// SetLangFilter stores the keyword language filter.
func (s *SQLite) SetLangFilter(ctx context.Context, lang model.Lang) error {
	if _, ok := model.ParseLang(string(lang)); !ok {
		return fmt.Errorf("unknown language %q", lang)
	}
	return s.setSetting(ctx, keyLangFilter, string(lang))
}

// SetDeliveryTarget stores where leads are sent.
func (s *SQLite) SetDeliveryTarget(ctx context.Context, target model.DeliveryTarget) error {
	channel := ""
	switch target.Kind {
	case model.TargetAdmin:
	case model.TargetChannel:
		if target.ChannelID == 0 {
			return fmt.Errorf("channel target without channel id")
		}
		channel = strconv.FormatInt(target.ChannelID, 10)
	default:
		return fmt.Errorf("unknown target kind %q", target.Kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertSetting(ctx, tx, keyTarget, string(target.Kind)); err != nil {
		return err
	}
	if err := upsertSetting(ctx, tx, keyChannelID, channel); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordCycleCompletion stores the finish time of the latest cycle.
func (s *SQLite) RecordCycleCompletion(ctx context.Context, at time.Time) error {
	return s.setSetting(ctx, keyLastCheckAt, at.UTC().Format(timeLayout))
}

// LoadProfile reads settings, keywords and stop words in one transaction.
func (s *SQLite) LoadProfile(ctx context.Context) (*model.InterestProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	values, err := readSettings(ctx, tx)
	if err != nil {
		return nil, err
	}
	keywords, err := listKeywords(ctx, tx)
	if err != nil {
		return nil, err
	}
	negative, err := listNegativeKeywords(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	settings := decodeSettings(values)
	return &model.InterestProfile{
		Keywords:           keywords,
		NegativeKeywords:   negative,
		MinScore:           settings.MinScore,
		MaxResultsPerCycle: settings.MaxResultsPerCycle,
		LangFilter:         settings.LangFilter,
		Target:             settings.Target,
	}, nil
}

// AddKeyword stores a keyword. It reports false when the phrase already exists
// in any letter case.
func (s *SQLite) AddKeyword(ctx context.Context, phrase string, lang model.Lang) (bool, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return false, fmt.Errorf("empty keyword")
	}
	if lang == "" {
		lang = model.LangBoth
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO keywords (phrase, lang, created_at) VALUES (?, ?, ?)`,
		phrase, string(lang), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert keyword: %w", err)
	}
	return affected(res)
}

// RemoveKeyword deletes a keyword, ignoring letter case.
func (s *SQLite) RemoveKeyword(ctx context.Context, phrase string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE phrase = ?`, strings.TrimSpace(phrase))
	if err != nil {
		return false, fmt.Errorf("delete keyword: %w", err)
	}
	return affected(res)
}

// ListKeywords returns keywords in insertion order.
func (s *SQLite) ListKeywords(ctx context.Context) ([]model.Keyword, error) {
	return listKeywords(ctx, s.db)
}

// AddNegativeKeyword stores a stop-list phrase.
func (s *SQLite) AddNegativeKeyword(ctx context.Context, phrase string) (bool, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return false, fmt.Errorf("empty stop word")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO neg_keywords (phrase, created_at) VALUES (?, ?)`,
		phrase, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert stop word: %w", err)
	}
	return affected(res)
}

// RemoveNegativeKeyword deletes a stop-list phrase, ignoring letter case.
func (s *SQLite) RemoveNegativeKeyword(ctx context.Context, phrase string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM neg_keywords WHERE phrase = ?`, strings.TrimSpace(phrase))
	if err != nil {
		return false, fmt.Errorf("delete stop word: %w", err)
	}
	return affected(res)
}

// ListNegativeKeywords returns the stop list in insertion order.
func (s *SQLite) ListNegativeKeywords(ctx context.Context) ([]string, error) {
	return listNegativeKeywords(ctx, s.db)
}

// AddSource stores a feed and populates its ID. It reports false when the URL
// is already registered.
func (s *SQLite) AddSource(ctx context.Context, src *model.Source) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sources (type, url, title, created_at) VALUES (?, ?, ?, ?)`,
		sourceTypeFeed, src.URL, src.Title, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert source: %w", err)
	}
	inserted, err := affected(res)
	if err != nil || !inserted {
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	src.ID = id
	return true, nil
}

// ListSources returns all feeds in a stable order.
func (s *SQLite) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title FROM sources WHERE type = ? ORDER BY id`, sourceTypeFeed,
	)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.URL, &src.Title); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a feed together with its watermark. Stored leads stay.
func (s *SQLite) DeleteSource(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watermarks WHERE source_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete watermark: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete source: %w", err)
	}
	deleted, err := affected(res)
	if err != nil {
		return false, err
	}
	return deleted, tx.Commit()
}

// GetWatermark returns the last processed publish time of a source and
// whether one was stored.
func (s *SQLite) GetWatermark(ctx context.Context, sourceID int64) (int64, bool, error) {
	var lastSeen int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seen FROM watermarks WHERE source_id = ?`, sourceID,
	).Scan(&lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get watermark: %w", err)
	}
	return lastSeen, true, nil
}

// SetWatermark raises the watermark of a source. Lower values are ignored.
func (s *SQLite) SetWatermark(ctx context.Context, sourceID int64, lastSeen int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watermarks (source_id, last_seen) VALUES (?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET last_seen = excluded.last_seen
		 WHERE excluded.last_seen > watermarks.last_seen`,
		sourceID, lastSeen,
	)
	if err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

// LeadExists reports whether a lead with the same item identity or the same
// fingerprint is already stored.
func (s *SQLite) LeadExists(ctx context.Context, sourceID int64, itemID, fingerprint string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM leads WHERE (source_id = ? AND source_item_id = ?) OR fingerprint = ?
		 )`,
		sourceID, itemID, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check lead: %w", err)
	}
	return exists == 1, nil
}

// InsertLead stores the lead unless either uniqueness key is taken. On insert
// it populates ID, CreatedAt and Status and reports true.
func (s *SQLite) InsertLead(ctx context.Context, lead *model.Lead) (bool, error) {
	created := lead.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	createdStr := created.UTC().Format(timeLayout)

	status := lead.Status
	if status == "" {
		status = model.StatusNew
	}

	matched, err := json.Marshal(nonNil(lead.MatchedKeywords))
	if err != nil {
		return false, fmt.Errorf("encode keywords: %w", err)
	}
	contacts, err := json.Marshal(normalizeContacts(lead.Contacts))
	if err != nil {
		return false, fmt.Errorf("encode contacts: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO leads (created_at, source_id, source_item_id, text, fingerprint, link,
			score, matched_keywords, contacts, status, source_label)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createdStr, lead.SourceID, lead.SourceItemID, lead.Text, lead.Fingerprint, lead.Link,
		lead.Score, string(matched), string(contacts), string(status), lead.SourceLabel,
	)
	if err != nil {
		return false, fmt.Errorf("insert lead: %w", err)
	}
	inserted, err := affected(res)
	if err != nil || !inserted {
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	lead.ID = id
	lead.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	lead.Status = status
	return true, nil
}

// GetLead returns a single lead by its ID.
func (s *SQLite) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// UpdateLeadStatus changes the triage status of a lead.
func (s *SQLite) UpdateLeadStatus(ctx context.Context, id int64, status model.LeadStatus) error {
	if _, ok := model.ParseLeadStatus(string(status)); !ok {
		return fmt.Errorf("unknown lead status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE leads SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	updated, err := affected(res)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

// ListLeadsForExport returns up to limit leads, newest first.
func (s *SQLite) ListLeadsForExport(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = defaultExportLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

// CountLeadsSince counts leads created at or after since.
func (s *SQLite) CountLeadsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE created_at >= ?`, since.UTC().Format(timeLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return count, nil
}

// ClearLeads deletes the whole lead history and returns the number of rows removed.
// Watermarks are kept, so old items are not re-delivered.
func (s *SQLite) ClearLeads(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads`)
	if err != nil {
		return 0, fmt.Errorf("clear leads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLite) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) setSetting(ctx context.Context, key, value string) error {
	return upsertSetting(ctx, s.db, key, value)
}

func upsertSetting(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func readSettings(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

func encodeSettings(st model.Settings) map[string]string {
	target, channel := string(model.TargetAdmin), ""
	if st.Target.Kind == model.TargetChannel && st.Target.ChannelID != 0 {
		target, channel = string(model.TargetChannel), strconv.FormatInt(st.Target.ChannelID, 10)
	}
	lang := st.LangFilter
	if lang == "" {
		lang = model.LangBoth
	}
	lastCheck := ""
	if st.LastCheckAt != nil {
		lastCheck = st.LastCheckAt.UTC().Format(timeLayout)
	}
	return map[string]string{
		keyMonitoringEnabled: strconv.Itoa(boolToInt(st.MonitoringEnabled)),
		keyPollInterval:      strconv.FormatInt(int64(st.PollInterval/time.Second), 10),
		keyMinScore:          strconv.Itoa(st.MinScore),
		keyMaxResults:        strconv.Itoa(st.MaxResultsPerCycle),
		keyLangFilter:        string(lang),
		keyTarget:            target,
		keyChannelID:         channel,
		keyLastCheckAt:       lastCheck,
	}
}

func decodeSettings(values map[string]string) *model.Settings {
	st := &model.Settings{
		MonitoringEnabled:  values[keyMonitoringEnabled] == "1",
		PollInterval:       fallbackPollInterval,
		MinScore:           intSetting(values[keyMinScore], fallbackMinScore),
		MaxResultsPerCycle: intSetting(values[keyMaxResults], fallbackMaxResults),
		LangFilter:         model.LangBoth,
		Target:             model.DeliveryTarget{Kind: model.TargetAdmin},
	}
	if secs := intSetting(values[keyPollInterval], 0); secs > 0 {
		st.PollInterval = time.Duration(secs) * time.Second
	}
	if st.MinScore < 0 || st.MinScore > 100 {
		st.MinScore = fallbackMinScore
	}
	if st.MaxResultsPerCycle < 1 {
		st.MaxResultsPerCycle = fallbackMaxResults
	}
	if lang, ok := model.ParseLang(values[keyLangFilter]); ok {
		st.LangFilter = lang
	}
	if values[keyTarget] == string(model.TargetChannel) {
		if id, err := strconv.ParseInt(values[keyChannelID], 10, 64); err == nil && id != 0 {
			st.Target = model.DeliveryTarget{Kind: model.TargetChannel, ChannelID: id}
		}
	}
	if v := values[keyLastCheckAt]; v != "" {
		if t, err := time.Parse(timeLayout, v); err == nil {
			st.LastCheckAt = &t
		}
	}
	return st
}

func intSetting(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func listKeywords(ctx context.Context, q querier) ([]model.Keyword, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, phrase, lang FROM keywords ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []model.Keyword
	for rows.Next() {
		var kw model.Keyword
		var lang string
		if err := rows.Scan(&kw.ID, &kw.Phrase, &lang); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		kw.Lang = model.Lang(lang)
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

func listNegativeKeywords(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT phrase FROM neg_keywords ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stop words: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var phrases []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan stop word: %w", err)
		}
		phrases = append(phrases, p)
	}
	return phrases, rows.Err()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func normalizeContacts(c model.Contacts) model.Contacts {
	return model.Contacts{
		Phone:    nonNil(c.Phone),
		Email:    nonNil(c.Email),
		Telegram: nonNil(c.Telegram),
		WhatsApp: nonNil(c.WhatsApp),
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var created, matched, contacts, status string
	err := row.Scan(&l.ID, &created, &l.SourceID, &l.SourceItemID, &l.Text, &l.Fingerprint, &l.Link,
		&l.Score, &matched, &contacts, &status, &l.SourceLabel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan lead: %w", err)
	}
	l.CreatedAt, _ = time.Parse(timeLayout, created)
	l.Status = model.LeadStatus(status)
	if err := json.Unmarshal([]byte(matched), &l.MatchedKeywords); err != nil {
		return nil, fmt.Errorf("decode keywords of lead %d: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(contacts), &l.Contacts); err != nil {
		return nil, fmt.Errorf("decode contacts of lead %d: %w", l.ID, err)
	}
	return &l, nil
}
