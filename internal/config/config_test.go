package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lead_bot/internal/model"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "ADMIN_TELEGRAM_ID", "DATABASE_PATH", "LOG_LEVEL",
	"DEFAULT_POLL_INTERVAL_SECONDS", "DEFAULT_MIN_SCORE", "DEFAULT_MAX_RESULTS_PER_CYCLE",
	"FETCH_TIMEOUT_SECONDS", "FETCH_ATTEMPTS", "FETCH_BATCH_SIZE",
}

func defaultConfig() *Config {
	return &Config{
		TelegramBotToken:    "tok",
		AdminID:             42,
		DatabasePath:        "./data/bot.db",
		LogLevel:            "info",
		DefaultPollInterval: 60 * time.Second,
		DefaultMinScore:     60,
		DefaultMaxResults:   10,
		FetchTimeout:        20 * time.Second,
		FetchAttempts:       3,
		FetchBatchSize:      50,
	}
}

func TestLoad(t *testing.T) {
	required := map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ADMIN_TELEGRAM_ID": "42"}

	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{"ADMIN_TELEGRAM_ID": "42"},
			wantErr: true,
		},
		{
			name:    "missing admin",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name:    "invalid admin",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ADMIN_TELEGRAM_ID": "admin"},
			wantErr: true,
		},
		{
			name: "required only, defaults applied",
			env:  required,
			want: defaultConfig(),
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":            "tok",
				"ADMIN_TELEGRAM_ID":             " 42 ",
				"DATABASE_PATH":                 "/tmp/bot.db",
				"LOG_LEVEL":                     "debug",
				"DEFAULT_POLL_INTERVAL_SECONDS": "300",
				"DEFAULT_MIN_SCORE":             "45",
				"DEFAULT_MAX_RESULTS_PER_CYCLE": "5",
				"FETCH_TIMEOUT_SECONDS":         "10",
				"FETCH_ATTEMPTS":                "2",
				"FETCH_BATCH_SIZE":              "20",
			},
			want: &Config{
				TelegramBotToken:    "tok",
				AdminID:             42,
				DatabasePath:        "/tmp/bot.db",
				LogLevel:            "debug",
				DefaultPollInterval: 300 * time.Second,
				DefaultMinScore:     45,
				DefaultMaxResults:   5,
				FetchTimeout:        10 * time.Second,
				FetchAttempts:       2,
				FetchBatchSize:      20,
			},
		},
		{
			name:    "min score out of range",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ADMIN_TELEGRAM_ID": "42", "DEFAULT_MIN_SCORE": "150"},
			wantErr: true,
		},
		{
			name:    "zero quota",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ADMIN_TELEGRAM_ID": "42", "DEFAULT_MAX_RESULTS_PER_CYCLE": "0"},
			wantErr: true,
		},
		{
			name:    "non-numeric interval",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ADMIN_TELEGRAM_ID": "42", "DEFAULT_POLL_INTERVAL_SECONDS": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	// godotenv does not override variables that exist, even when empty.
	_ = os.Unsetenv("TELEGRAM_BOT_TOKEN")
	_ = os.Unsetenv("ADMIN_TELEGRAM_ID")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TELEGRAM_BOT_TOKEN=tok\nADMIN_TELEGRAM_ID=42\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("TELEGRAM_BOT_TOKEN")
		_ = os.Unsetenv("ADMIN_TELEGRAM_ID")
	})

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(defaultConfig(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name    string
		adminID int64
		userID  int64
		want    bool
	}{
		{name: "admin", adminID: 42, userID: 42, want: true},
		{name: "someone else", adminID: 42, userID: 7, want: false},
		{name: "unset admin denies everyone", adminID: 0, userID: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AdminID: tt.adminID}
			if diff := cmp.Diff(tt.want, cfg.IsAdmin(tt.userID)); diff != "" {
				t.Errorf("IsAdmin() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultSettings(t *testing.T) {
	got := defaultConfig().DefaultSettings()
	want := model.Settings{
		PollInterval:       60 * time.Second,
		MinScore:           60,
		MaxResultsPerCycle: 10,
		LangFilter:         model.LangBoth,
		Target:             model.DeliveryTarget{Kind: model.TargetAdmin},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DefaultSettings() mismatch (-want +got):\n%s", diff)
	}
}
