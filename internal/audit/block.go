package audit

import (
	"encoding/json"
	"fmt"
)

// Entry is a tamper-evident record of one posted status
type Entry struct {
	Index      int    `json:"index"`
	Timestamp  string `json:"timestamp"`
	BuildID    string `json:"buildId"`
	Context    string `json:"context"`
	State      string `json:"state"`
	TargetURL  string `json:"targetUrl"`
	HTTPStatus int    `json:"httpStatus"`
	Response   string `json:"response"` // response file, relative to the journal
	BodyHash   string `json:"bodyHash"`
	PrevHash   string `json:"prevHash"`
	Hash       string `json:"hash"`
}

// canonicalData returns the JSON bytes used to compute the entry hash.
// It excludes Hash itself
func (e *Entry) canonicalData() ([]byte, error) {
	view := *e
	view.Hash = ""
	return json.Marshal(view)
}

// ComputeHash calculates SHA256 over canonicalData
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

func (e *Entry) seal() error {
	h, err := e.ComputeHash()
	if err != nil {
		return fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h
	return nil
}
