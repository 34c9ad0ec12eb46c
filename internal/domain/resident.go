package domain

import "time"

// Resident is the canonical shape of one directory entry, whatever the
// column names of the feed revision it was read from.
type Resident struct {
	ApartmentID      string `json:"apartmentId"`
	NativePlace      string `json:"nativePlace"`
	Role             string `json:"role"` // free text, e.g. "Owner" or "માલિક"
	OccupantName     string `json:"occupantName"`
	OwnerName        string `json:"ownerName"`
	MemberCount      int    `json:"memberCount"`
	TwoWheelerCount  int    `json:"twoWheelerCount"`
	FourWheelerCount int    `json:"fourWheelerCount"`
	Phone            string `json:"phone"`
	WhatsApp         string `json:"whatsapp"`
}

// EmergencyContacts holds raw phone strings as they appear in the feed.
type EmergencyContacts struct {
	President   string `json:"president"`
	Lift        string `json:"lift"`
	Electrician string `json:"electrician"`
	Plumber     string `json:"plumber"`
	Rickshaw    string `json:"rickshaw"`
}

// Snapshot is published as a whole and never mutated afterwards.
type Snapshot struct {
	Version   string            `json:"version"`
	Records   []Resident        `json:"records"`
	Emergency EmergencyContacts `json:"emergency"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

type Summary struct {
	Apartments   int `json:"apartments"`
	Owners       int `json:"owners"`
	Tenants      int `json:"tenants"`
	Members      int `json:"members"`
	TwoWheelers  int `json:"twoWheelers"`
	FourWheelers int `json:"fourWheelers"`
}
