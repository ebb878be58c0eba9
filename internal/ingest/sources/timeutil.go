package sources

import "time"

// parseOpenAQTimestamp accepts OpenAQ's RFC3339 "lastUpdated" field.
func parseOpenAQTimestamp(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
