package antifraud

import (
	"encoding/json"
	"fmt"
	"time"
)

// cacheUntilLayouts are the accepted cache_until formats, most specific first.
// The service emits ISO-8601 timestamps that may omit the zone; those are UTC.
var cacheUntilLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseCacheUntil(raw json.RawMessage) (*time.Time, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("cache_until is not a string: %w", err)
	}
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range cacheUntilLayouts {
		if t, err := time.ParseInLocation(layout, *s, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized cache_until %q", *s)
}
