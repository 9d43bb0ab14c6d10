package models

import "time"

type Evidence struct {
	ID          string
	OrderID     string
	StageKey    string
	FileName    string
	ArtifactRef string
	UploadedBy  string
	UploadedAt  time.Time
}
