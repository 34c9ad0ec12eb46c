package domain

import "context"

// FeedFetcher returns the raw CSV text of the published sheet.
type FeedFetcher interface {
	FetchFeed(ctx context.Context) (string, error)
}

// FetchFunc adapts a plain function to FeedFetcher.
type FetchFunc func(ctx context.Context) (string, error)

func (f FetchFunc) FetchFeed(ctx context.Context) (string, error) { return f(ctx) }

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Sort keys accepted by QueryOptions.SortKey. They match the JSON names of
// the Resident fields.
const (
	SortApartment   = "apartmentId"
	SortNativePlace = "nativePlace"
	SortRole        = "role"
	SortOccupant    = "occupantName"
	SortOwner       = "ownerName"
	SortMembers     = "memberCount"
	SortTwoWheeler  = "twoWheelerCount"
	SortFourWheeler = "fourWheelerCount"
	SortPhone       = "phone"
)

// RoleAll disables the role filter.
const RoleAll = "all"

type QueryOptions struct {
	Search     string
	RoleFilter string
	SortKey    string
}
