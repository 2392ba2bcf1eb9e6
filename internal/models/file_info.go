package models

import "time"

// Candidate is a raw file descriptor offered for staging.
type Candidate struct {
	Name    string
	Size    int64
	Content []byte
}

// StagedFile represents a document accepted for analysis.
// Content is held in memory only and never written anywhere.
type StagedFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Extension string    `json:"extension"`
	StagedAt  time.Time `json:"stagedAt"`
	Content   []byte    `json:"-" msgpack:"-"`
}

// Rejection names a candidate that was refused at intake.
type Rejection struct {
	Name   string           `json:"name"`
	Reason ValidationReason `json:"reason"`
}
