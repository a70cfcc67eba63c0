package remote

// ListingDTO is one record of the remote listings feed.
type ListingDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	RoomType    string     `json:"roomType"`
	Rate        RateDTO    `json:"rate"`
	PrimaryHost HostDTO    `json:"primaryHost"`
	Photos      []PhotoDTO `json:"photos"`
}

// RateDTO is a nightly rate in whole currency units.
type RateDTO struct {
	Amount int64 `json:"amount"`
}

// HostDTO is the host embedded in a listing record.
type HostDTO struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	About       string `json:"about"`
	PictureURL  string `json:"pictureUrl"`
	IsSuperhost bool   `json:"isSuperhost"`
	MemberSince string `json:"memberSince"`
}

// PhotoDTO is a listing photo. ID is optional in the feed.
type PhotoDTO struct {
	ID      string `json:"id,omitempty"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
}
