// Package state persists the small amount of bot state that must survive
// restarts: the Telegram update offset and the time of the last scan.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BotState is the persisted state.
type BotState struct {
	PollingOffset int       `json:"polling_offset"`
	LastScanAt    time.Time `json:"last_scan_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LoadState reads the state from a JSON file. Returns a zero state if the file doesn't exist.
func LoadState(filePath string) (*BotState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &BotState{}, nil
		}
		return nil, err
	}
	var st BotState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", filePath, err)
	}
	return &st, nil
}

// SaveState writes the state through a temp file and rename.
func SaveState(filePath string, st *BotState) error {
	st.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
