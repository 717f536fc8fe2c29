package history

import "time"

// TimestampLayout is the ISO-8601 layout entries are stamped with
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Entry is one question/response pair. Entries are never modified after creation.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Question  string `json:"question"`
	Response  string `json:"response"`
}

// Time parses the entry timestamp. Entries written by other clients may carry an
// offset or omit fractional seconds; all of those forms are accepted.
func (e Entry) Time() (time.Time, error) {
	layouts := []string{time.RFC3339Nano, TimestampLayout, "2006-01-02T15:04:05"}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, e.Timestamp, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
