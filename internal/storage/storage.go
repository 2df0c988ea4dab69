// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"lead_bot/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	EnsureDefaults(ctx context.Context, defaults model.Settings) error
	GetSettings(ctx context.Context) (*model.Settings, error)
	IsMonitoringEnabled(ctx context.Context) (bool, error)
	SetMonitoringEnabled(ctx context.Context, enabled bool) error
	SetPollInterval(ctx context.Context, d time.Duration) error
	SetMinScore(ctx context.Context, score int) error
	SetMaxResults(ctx context.Context, n int) error
	SetLangFilter(ctx context.Context, lang model.Lang) error
	SetDeliveryTarget(ctx context.Context, target model.DeliveryTarget) error
	RecordCycleCompletion(ctx context.Context, at time.Time) error
	LoadProfile(ctx context.Context) (*model.InterestProfile, error)

	AddKeyword(ctx context.Context, phrase string, lang model.Lang) (bool, error)
	RemoveKeyword(ctx context.Context, phrase string) (bool, error)
	ListKeywords(ctx context.Context) ([]model.Keyword, error)
	AddNegativeKeyword(ctx context.Context, phrase string) (bool, error)
	RemoveNegativeKeyword(ctx context.Context, phrase string) (bool, error)
	ListNegativeKeywords(ctx context.Context) ([]string, error)

	AddSource(ctx context.Context, src *model.Source) (bool, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	DeleteSource(ctx context.Context, id int64) (bool, error)

	GetWatermark(ctx context.Context, sourceID int64) (int64, bool, error)
	SetWatermark(ctx context.Context, sourceID int64, lastSeen int64) error

	LeadExists(ctx context.Context, sourceID int64, itemID, fingerprint string) (bool, error)
	InsertLead(ctx context.Context, lead *model.Lead) (bool, error)
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id int64, status model.LeadStatus) error
	ListLeadsForExport(ctx context.Context, limit int) ([]model.Lead, error)
	CountLeadsSince(ctx context.Context, since time.Time) (int, error)
	ClearLeads(ctx context.Context) (int64, error)

	Close() error
}
