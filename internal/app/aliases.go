package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical field names. They double as keys of AliasTable and as the
// sort keys understood by Query.
const (
	FieldApartment   = "apartmentId"
	FieldNativePlace = "nativePlace"
	FieldRole        = "role"
	FieldOccupant    = "occupantName"
	FieldOwner       = "ownerName"
	FieldMembers     = "memberCount"
	FieldTwoWheeler  = "twoWheelerCount"
	FieldFourWheeler = "fourWheelerCount"
	FieldPhone       = "phone"
	FieldWhatsApp    = "whatsapp"

	FieldPresident   = "president"
	FieldLift        = "lift"
	FieldElectrician = "electrician"
	FieldPlumber     = "plumber"
	FieldRickshaw    = "rickshaw"
)

// AliasTable maps a canonical field to the ordered list of sheet headers it
// may be read from. Earlier aliases win.
type AliasTable map[string][]string

/********** alias registry (single source of truth) **********/

// Feed revisions so far: the original Gujarati/English mix ("Flat No",
// "માલિક નામ", ...) and the later English-only sheet. New spellings go at the
// end of the relevant list.
var defaultAliases = AliasTable{
	FieldApartment:   {"Flat No", "Flat", "Flat Number", "Apartment", "Apartment No", "Unit", "ફ્લેટ નંબર", "ફલેટ નં"},
	FieldNativePlace: {"મૂળ ગામ", "Native Place", "Native", "Native Village", "Village", "વતન"},
	FieldRole:        {"Type", "Role", "Resident Type", "Occupancy", "પ્રકાર"},
	FieldOccupant:    {"ભાડુઆત નામ", "Tenant Name", "Occupant Name", "Occupant", "Name", "Resident Name", "નામ"},
	FieldOwner:       {"માલિક નામ", "Owner Name", "Owner"},
	FieldMembers:     {"સભ્ય સંખ્યા", "Members", "Member Count", "Family Members", "સભ્ય"},
	FieldTwoWheeler:  {"2 Wheeler", "Two Wheeler", "2W", "2 વ્હીલર"},
	FieldFourWheeler: {"4 Wheeler", "Four Wheeler", "4W", "4 વ્હીલર"},
	FieldPhone:       {"Phone", "Phone No", "Mobile", "Mobile No", "Contact", "મોબાઇલ", "ફોન"},
	FieldWhatsApp:    {"WhatsApp", "Whatsapp", "WhatsApp No", "WhatsApp Number", "વોટ્સએપ"},

	FieldPresident:   {"President", "President Phone", "પ્રમુખ"},
	FieldLift:        {"Lift", "Lift Service", "Lift Phone", "લિફ્ટ"},
	FieldElectrician: {"Electrician", "Electrician Phone", "ઇલેક્ટ્રિશિયન"},
	FieldPlumber:     {"Plumber", "Plumber Phone", "પ્લમ્બર"},
	FieldRickshaw:    {"Rickshaw", "Rickshaw Phone", "રિક્ષા"},
}

// DefaultAliases returns a copy of the built-in table.
func DefaultAliases() AliasTable {
	return defaultAliases.clone()
}

func (t AliasTable) clone() AliasTable {
	out := make(AliasTable, len(t))
	for k, v := range t {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Merge returns a copy of t with extra's aliases appended per field.
// Aliases already present are not repeated.
func (t AliasTable) Merge(extra AliasTable) AliasTable {
	out := t.clone()
	for field, aliases := range extra {
		seen := make(map[string]struct{}, len(out[field]))
		for _, a := range out[field] {
			seen[a] = struct{}{}
		}
		for _, a := range aliases {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out[field] = append(out[field], a)
		}
	}
	return out
}

// LoadAliasFile reads extra aliases from YAML, one list per canonical field:
//
//	apartmentId: ["Wing Flat"]
//	phone: ["Contact No"]
//
// Unknown field names are rejected so typos do not silently do nothing.
func LoadAliasFile(path string) (AliasTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var extra AliasTable
	if err := yaml.Unmarshal(b, &extra); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}
	for field := range extra {
		if _, ok := defaultAliases[field]; !ok {
			return nil, fmt.Errorf("alias file %s: unknown field %q", path, field)
		}
	}
	return extra, nil
}
