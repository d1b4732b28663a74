package tracking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Report is one position message sent by a driver's device.
type Report struct {
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Speed         float64   `json:"speed"` // km/h
	NextStopIndex *int      `json:"next_stop_index,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts RFC3339 timestamps with or without a zone suffix (UTC is assumed)
// and a missing timestamp.
func (r *Report) UnmarshalJSON(data []byte) error {
	type alias Report
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts := strings.TrimSpace(aux.Timestamp)
	if ts == "" {
		r.Timestamp = time.Time{}
		return nil
	}
	if !hasZone(ts) {
		ts += "Z"
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", aux.Timestamp, err)
	}
	r.Timestamp = t
	return nil
}

func hasZone(ts string) bool {
	if strings.HasSuffix(ts, "Z") {
		return true
	}
	// Offsets such as +05:30 follow the time part.
	t := strings.Index(ts, "T")
	return t >= 0 && strings.LastIndexAny(ts, "+-") > t
}
