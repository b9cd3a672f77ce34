package models

import "time"

// Record is a service visit as stored in service_records. PhotoURL is the
// legacy single-photo column and is kept equal to PhotoURLs[0].
type Record struct {
	ID            string
	UserID        string
	ClientName    string
	VesselName    string
	StartDateTime time.Time
	Details       string
	PhotoURL      string
	PhotoURLs     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
