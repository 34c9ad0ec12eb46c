package app

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"resident_directory/internal/domain"
	"resident_directory/internal/tabular"
)

// Mapper turns sheet rows into canonical residents using an alias table.
// It is the only place that knows about sheet column names.
type Mapper struct {
	aliases AliasTable
}

// NewMapper builds a Mapper over the built-in aliases plus extra.
func NewMapper(extra AliasTable) *Mapper {
	return &Mapper{aliases: defaultAliases.Merge(extra)}
}

/********** tiny helpers **********/

// firstNonEmptyAlias: first non-empty cell for a canonical field.
func firstNonEmptyAlias(r tabular.Row, aliases AliasTable, field string) string {
	for _, h := range aliases[field] {
		if s := r.Get(h); s != "" {
			return s
		}
	}
	return ""
}

// firstCount: digits of the first non-empty alias, parsed; 0 on anything odd.
// "3 members" -> 3, "2+1" -> 21 (all digits are kept), "-" -> 0.
func firstCount(r tabular.Row, aliases AliasTable, field string) int {
	s := digitsOnly(firstNonEmptyAlias(r, aliases, field))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

/********** row mapper **********/

// MapRow resolves every canonical field of one row. Missing columns yield
// "" or 0, never an error.
func (m *Mapper) MapRow(r tabular.Row) domain.Resident {
	owner := firstNonEmptyAlias(r, m.aliases, FieldOwner)
	occupant := firstNonEmptyAlias(r, m.aliases, FieldOccupant)
	if occupant == "" {
		// owner-occupied flats only fill the owner column
		occupant = owner
	}
	return domain.Resident{
		ApartmentID:      firstNonEmptyAlias(r, m.aliases, FieldApartment),
		NativePlace:      firstNonEmptyAlias(r, m.aliases, FieldNativePlace),
		Role:             firstNonEmptyAlias(r, m.aliases, FieldRole),
		OccupantName:     occupant,
		OwnerName:        owner,
		MemberCount:      firstCount(r, m.aliases, FieldMembers),
		TwoWheelerCount:  firstCount(r, m.aliases, FieldTwoWheeler),
		FourWheelerCount: firstCount(r, m.aliases, FieldFourWheeler),
		Phone:            firstNonEmptyAlias(r, m.aliases, FieldPhone),
		WhatsApp:         firstNonEmptyAlias(r, m.aliases, FieldWhatsApp),
	}
}

// Emergency collects emergency numbers; each field keeps the first
// non-empty value in row order.
func (m *Mapper) Emergency(rows []tabular.Row) domain.EmergencyContacts {
	var ec domain.EmergencyContacts
	fill := func(dst *string, r tabular.Row, field string) {
		if *dst == "" {
			*dst = firstNonEmptyAlias(r, m.aliases, field)
		}
	}
	for _, r := range rows {
		fill(&ec.President, r, FieldPresident)
		fill(&ec.Lift, r, FieldLift)
		fill(&ec.Electrician, r, FieldElectrician)
		fill(&ec.Plumber, r, FieldPlumber)
		fill(&ec.Rickshaw, r, FieldRickshaw)
	}
	return ec
}

// MapRows maps every row that names an apartment. Rows without one (notes,
// emergency-only lines, trailing junk) still feed Emergency but are not
// residents.
func (m *Mapper) MapRows(rows []tabular.Row) ([]domain.Resident, domain.EmergencyContacts) {
	out := make([]domain.Resident, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		rec := m.MapRow(r)
		if rec.ApartmentID == "" {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Int("kept", len(out)).Msg("rows without apartment id")
	}
	return out, m.Emergency(rows)
}
