package bot

import (
	"fmt"
	"strconv"
	"strings"

	"lead_bot/internal/model"
)

// Operator input limits.
const (
	minIntervalSeconds = 10
	maxIntervalSeconds = 3600
	maxQuota           = 100
)

// ParseKeywordArgs parses "[RU|EN|BOTH] <phrase>". The language defaults to BOTH.
func ParseKeywordArgs(args string) (model.Lang, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", "", fmt.Errorf("usage: /addkw [RU|EN|BOTH] <phrase>")
	}

	lang := model.LangBoth
	if l, ok := model.ParseLang(strings.ToUpper(fields[0])); ok && len(fields) > 1 {
		lang = l
		fields = fields[1:]
	}
	return lang, strings.Join(fields, " "), nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParseIntRange parses a single integer argument within [lo, hi].
func ParseIntRange(args string, lo, hi int) (int, error) {
	s := strings.TrimSpace(args)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("value must be between %d and %d", lo, hi)
	}
	return v, nil
}

// ParseOnOff parses "on"/"off" style switches.
func ParseOnOff(args string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on", "1", "yes", "true":
		return true, nil
	case "off", "0", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("usage: on | off")
}

// ParseTarget parses "admin" or a numeric channel ID.
func ParseTarget(args string) (model.DeliveryTarget, error) {
	s := strings.TrimSpace(args)
	if strings.EqualFold(s, "admin") {
		return model.DeliveryTarget{Kind: model.TargetAdmin}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return model.DeliveryTarget{}, fmt.Errorf("usage: /target admin | <channel_id>")
	}
	return model.DeliveryTarget{Kind: model.TargetChannel, ChannelID: id}, nil
}
