package sync

import (
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/tunjid/listingApp-sub001/internal/model"
	"github.com/tunjid/listingApp-sub001/internal/remote"
	"github.com/tunjid/listingApp-sub001/internal/store"
)

// mediaNamespace seeds the name-based UUIDs of photos that arrive without an
// id, so the same photo maps to the same row on every pass.
var mediaNamespace = uuid.MustParse("8f0c3c52-4d0e-4b8f-a8a2-6a1f1d9f3e51")

// toSnapshot decomposes feed records into normalized rows. Hosts embedded in
// several listings become one user; photos keep feed order. A photo id that
// repeats is kept for the first listing only and each drop is logged.
func toSnapshot(dtos []remote.ListingDTO, log *slog.Logger) store.Snapshot {
	snap := store.Snapshot{
		Users:    []model.User{},
		Listings: make([]model.Listing, 0, len(dtos)),
		Media:    []model.Media{},
	}
	seenUsers := make(map[string]struct{})
	seenListings := make(map[string]struct{}, len(dtos))
	mediaOwner := make(map[string]string)

	for _, d := range dtos {
		if _, dup := seenListings[d.ID]; dup {
			continue
		}
		seenListings[d.ID] = struct{}{}
		snap.Listings = append(snap.Listings, dtoToListing(d))

		if h := d.PrimaryHost; h.ID != "" {
			if _, dup := seenUsers[h.ID]; !dup {
				seenUsers[h.ID] = struct{}{}
				snap.Users = append(snap.Users, dtoToUser(h))
			}
		}

		for _, p := range d.Photos {
			if p.URL == "" {
				continue
			}
			m := dtoToMedia(d.ID, p)
			if owner, dup := mediaOwner[m.ID]; dup {
				log.Warn("dropping duplicate photo id",
					"media_id", m.ID, "listing_id", d.ID, "kept_for", owner, "url", p.URL)
				continue
			}
			mediaOwner[m.ID] = d.ID
			snap.Media = append(snap.Media, m)
		}
	}
	return snap
}

func dtoToListing(d remote.ListingDTO) model.Listing {
	return model.Listing{
		ID:           d.ID,
		HostID:       d.PrimaryHost.ID,
		Price:        strconv.FormatInt(d.Rate.Amount, 10),
		Description:  d.Address,
		Title:        d.Name,
		PropertyType: d.RoomType,
	}
}

func dtoToUser(h remote.HostDTO) model.User {
	return model.User{
		ID:          h.ID,
		FirstName:   h.FirstName,
		About:       h.About,
		PictureURL:  h.PictureURL,
		IsSuperHost: h.IsSuperhost,
		MemberSince: h.MemberSince,
	}
}

func dtoToMedia(listingID string, p remote.PhotoDTO) model.Media {
	id := p.ID
	if id == "" {
		id = mediaID(listingID, p.URL)
	}
	return model.Media{
		ID:          id,
		ListingID:   listingID,
		URL:         p.URL,
		Description: p.Caption,
	}
}

// mediaID derives a stable id from the owning listing and the photo URL.
func mediaID(listingID, url string) string {
	return uuid.NewSHA1(mediaNamespace, []byte(listingID+"\x00"+url)).String()
}
