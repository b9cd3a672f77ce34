package client

import (
	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/client/photo"
)

// fromAPI adopts a server row as a synced local record. The legacy
// photo_url column comes first, followed by photo_urls, duplicates removed.
func fromAPI(a api.Record) models.ServiceRecord {
	photos := make([]models.PhotoRef, 0, len(a.PhotoURLs)+1)
	if a.PhotoURL != "" {
		photos = append(photos, models.PhotoRef{URL: a.PhotoURL})
	}
	for _, u := range a.PhotoURLs {
		photos = append(photos, models.PhotoRef{URL: u})
	}

	return models.Normalize(models.ServiceRecord{
		ID:            a.ID,
		ClientName:    a.ClientName,
		VesselName:    a.VesselName,
		StartDateTime: a.StartDateTime,
		Details:       a.Details,
		Photos:        photo.Dedupe(photos),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		Synced:        true,
	})
}

func toAPI(userID string, r models.ServiceRecord) (api.Record, error) {
	urls := make([]string, 0, len(r.Photos))
	for _, p := range photo.Dedupe(r.Photos) {
		if !p.Remote() {
			return api.Record{}, ErrInlinePhoto
		}
		urls = append(urls, p.URL)
	}

	out := api.Record{
		ID:            r.ID,
		ClientName:    r.ClientName,
		VesselName:    r.VesselName,
		StartDateTime: r.StartDateTime.UTC(),
		Details:       r.Details,
		PhotoURLs:     urls,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		UserID:        userID,
	}
	if len(urls) > 0 {
		out.PhotoURL = urls[0]
	}
	return out, nil
}
