package sectoralarm

import (
	"encoding/json"
	"fmt"
)

type apiOverview struct {
	Panel *struct {
		PanelId          string  `json:"PanelId"`
		PanelDisplayName string  `json:"PanelDisplayName"`
		ArmedStatus      *string `json:"ArmedStatus"`
	} `json:"Panel"`
}

type apiLogDetail struct {
	EventType string `json:"EventType"`
	LockName  string `json:"LockName"`
	User      string `json:"User"`
	Channel   string `json:"Channel"`
	Time      string `json:"Time"`
}

type apiHistory struct {
	LogDetails []apiLogDetail `json:"LogDetails"`
}

// the envelope returned by the credential validation endpoint
type loginEnvelope struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
}

func decodeOverview(body []byte) (StatusRecord, error) {
	var overview apiOverview
	err := json.Unmarshal(body, &overview)
	if err != nil {
		return StatusRecord{}, fmt.Errorf("decode overview: %w", err)
	}

	var record StatusRecord
	if overview.Panel == nil {
		return record, nil
	}
	state, err := normalizeArmedState(overview.Panel.ArmedStatus)
	if err != nil {
		record.Errors = append(record.Errors, err.Error())
	}
	record.ArmedState = state
	return record, nil
}

func decodeHistory(body []byte, n Normalizer) ([]LogItem, error) {
	var history apiHistory
	err := json.Unmarshal(body, &history)
	if err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	items := make([]LogItem, len(history.LogDetails))
	for i, detail := range history.LogDetails {
		items[i] = LogEntry{
			Event:     detail.EventType,
			Timestamp: n.EpochDate(detail.Time),
			User:      CleanUser(detail.User),
			Lock:      detail.LockName,
			Channel:   detail.Channel,
		}
	}
	return items, nil
}
