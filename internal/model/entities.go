// Package model defines the entities and query cursors shared by the store,
// the sync coordinator, the repositories and the tiling engine.
package model

// Listing is a single rental listing as persisted locally.
type Listing struct {
	ID     string `db:"id" cbor:"1,keyasint"`
	HostID string `db:"host_id" cbor:"2,keyasint"`

	// Price is the nightly rate rendered as a decimal string (e.g. "120").
	Price string `db:"price" cbor:"3,keyasint"`

	// Description holds the street address reported by the remote.
	Description string `db:"description" cbor:"4,keyasint"`

	Title        string `db:"title" cbor:"5,keyasint"`
	PropertyType string `db:"property_type" cbor:"6,keyasint"`
}

// Media is a photo attached to a listing. Rows are ordered within a listing
// by insertion.
type Media struct {
	ID        string `db:"id" cbor:"1,keyasint"`
	ListingID string `db:"listing_id" cbor:"2,keyasint"`
	URL       string `db:"url" cbor:"3,keyasint"`

	// Description is the accessibility text for the image.
	Description string `db:"description" cbor:"4,keyasint"`
}

// User is a host profile.
type User struct {
	ID          string `db:"id" cbor:"1,keyasint"`
	FirstName   string `db:"first_name" cbor:"2,keyasint"`
	About       string `db:"about" cbor:"3,keyasint"`
	PictureURL  string `db:"picture_url" cbor:"4,keyasint"`
	IsSuperHost bool   `db:"is_super_host" cbor:"5,keyasint"`
	MemberSince string `db:"member_since" cbor:"6,keyasint"`
}

// Favorite records whether the user starred a listing. There is at most one
// row per listing.
type Favorite struct {
	ListingID  string `db:"listing_id" cbor:"1,keyasint"`
	IsFavorite bool   `db:"is_favorite" cbor:"2,keyasint"`
}
