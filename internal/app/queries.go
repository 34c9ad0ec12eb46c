package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"resident_directory/internal/domain"
)

var ErrNoSnapshot = errors.New("directory: no snapshot published yet")

// Role tokens counted by Summarize, in both feed languages.
var (
	ownerTokens  = []string{"owner", "માલિક"}
	tenantTokens = []string{"tenant", "ભાડુઆત"}
)

/********** pure engine **********/

// Query filters by role, then by free text, then sorts. The input slice is
// never modified; the result is always a fresh slice.
func Query(records []domain.Resident, opts domain.QueryOptions) []domain.Resident {
	role := strings.ToLower(strings.TrimSpace(opts.RoleFilter))
	term := strings.ToLower(strings.TrimSpace(opts.Search))

	out := make([]domain.Resident, 0, len(records))
	for _, r := range records {
		if role != "" && role != domain.RoleAll && !strings.Contains(strings.ToLower(r.Role), role) {
			continue
		}
		if term != "" && !matchesSearch(r, term) {
			continue
		}
		out = append(out, r)
	}

	if key := sortValue(opts.SortKey); key != nil {
		sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	}
	return out
}

func matchesSearch(r domain.Resident, term string) bool {
	for _, f := range []string{r.ApartmentID, r.OccupantName, r.OwnerName, r.NativePlace} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// sortValue returns the string a record sorts by, or nil for an unknown
// key (feed order is kept). Counts sort by their decimal text.
func sortValue(key string) func(domain.Resident) string {
	switch key {
	case domain.SortApartment:
		return func(r domain.Resident) string { return r.ApartmentID }
	case domain.SortNativePlace:
		return func(r domain.Resident) string { return r.NativePlace }
	case domain.SortRole:
		return func(r domain.Resident) string { return r.Role }
	case domain.SortOccupant:
		return func(r domain.Resident) string { return r.OccupantName }
	case domain.SortOwner:
		return func(r domain.Resident) string { return r.OwnerName }
	case domain.SortMembers:
		return func(r domain.Resident) string { return strconv.Itoa(r.MemberCount) }
	case domain.SortTwoWheeler:
		return func(r domain.Resident) string { return strconv.Itoa(r.TwoWheelerCount) }
	case domain.SortFourWheeler:
		return func(r domain.Resident) string { return strconv.Itoa(r.FourWheelerCount) }
	case domain.SortPhone:
		return func(r domain.Resident) string { return r.Phone }
	}
	return nil
}

// Summarize counts in one pass. A role mentioning both tokens counts as
// owner and tenant.
func Summarize(records []domain.Resident) domain.Summary {
	s := domain.Summary{Apartments: len(records)}
	for _, r := range records {
		role := strings.ToLower(r.Role)
		if containsAny(role, ownerTokens) {
			s.Owners++
		}
		if containsAny(role, tenantTokens) {
			s.Tenants++
		}
		s.Members += r.MemberCount
		s.TwoWheelers += r.TwoWheelerCount
		s.FourWheelers += r.FourWheelerCount
	}
	return s
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

/********** read service **********/

// SnapshotSource hands out the snapshot currently being served.
type SnapshotSource interface {
	Current() (domain.Snapshot, bool)
}

type ResidentsPage struct {
	Version   string            `json:"version"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Items     []domain.Resident `json:"items"`
}

type SummaryView struct {
	Version   string         `json:"version"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Summary   domain.Summary `json:"summary"`
}

type QueryService struct {
	src      SnapshotSource
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewQueryService wires the engine to a snapshot source. cache may be nil.
func NewQueryService(src SnapshotSource, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{src: src, cache: c, cacheTTL: ttl}
}

func (s *QueryService) snapshot() (domain.Snapshot, error) {
	snap, ok := s.src.Current()
	if !ok {
		return domain.Snapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

// Residents runs Query over the current snapshot. Results are cached per
// snapshot version, so a new snapshot never serves stale entries.
func (s *QueryService) Residents(ctx context.Context, opts domain.QueryOptions) (ResidentsPage, error) {
	snap, err := s.snapshot()
	if err != nil {
		return ResidentsPage{}, err
	}

	key := fmt.Sprintf("residents:%s:%q:%q:%q", snap.Version,
		strings.ToLower(strings.TrimSpace(opts.RoleFilter)),
		strings.ToLower(strings.TrimSpace(opts.Search)),
		opts.SortKey)

	var out ResidentsPage
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	out = ResidentsPage{
		Version:   snap.Version,
		FetchedAt: snap.FetchedAt,
		Items:     Query(snap.Records, opts),
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

func (s *QueryService) Summary(ctx context.Context) (SummaryView, error) {
	snap, err := s.snapshot()
	if err != nil {
		return SummaryView{}, err
	}
	return SummaryView{Version: snap.Version, FetchedAt: snap.FetchedAt, Summary: Summarize(snap.Records)}, nil
}

func (s *QueryService) Emergency(ctx context.Context) (domain.EmergencyContacts, error) {
	snap, err := s.snapshot()
	if err != nil {
		return domain.EmergencyContacts{}, err
	}
	return snap.Emergency, nil
}
