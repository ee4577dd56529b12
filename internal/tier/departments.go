package tier

import (
	"sort"
	"strings"
)

const (
	DepartmentDeck        = "deck"
	DepartmentInterior    = "interior"
	DepartmentEngineering = "engineering"
	DepartmentGalley      = "galley"
)

// departments maps normalized positions to their department.
var departments = map[string]string{
	"captain":              DepartmentDeck,
	"relief_captain":       DepartmentDeck,
	"chief_officer":        DepartmentDeck,
	"first_officer":        DepartmentDeck,
	"first_mate":           DepartmentDeck,
	"second_officer":       DepartmentDeck,
	"third_officer":        DepartmentDeck,
	"officer_of_the_watch": DepartmentDeck,
	"mate":                 DepartmentDeck,
	"bosun":                DepartmentDeck,
	"lead_deckhand":        DepartmentDeck,
	"deckhand":             DepartmentDeck,
	"deck_stew":            DepartmentDeck,
	"deck_stewardess":      DepartmentDeck,

	"chief_stewardess":     DepartmentInterior,
	"chief_steward":        DepartmentInterior,
	"chief_stew":           DepartmentInterior,
	"interior_manager":     DepartmentInterior,
	"head_of_housekeeping": DepartmentInterior,
	"second_stewardess":    DepartmentInterior,
	"third_stewardess":     DepartmentInterior,
	"stewardess":           DepartmentInterior,
	"steward":              DepartmentInterior,
	"stew":                 DepartmentInterior,
	"purser":               DepartmentInterior,
	"housekeeper":          DepartmentInterior,
	"laundry":              DepartmentInterior,
	"butler":               DepartmentInterior,

	"chief_engineer":  DepartmentEngineering,
	"second_engineer": DepartmentEngineering,
	"third_engineer":  DepartmentEngineering,
	"engineer":        DepartmentEngineering,
	"eto":             DepartmentEngineering,
	"electrician":     DepartmentEngineering,
	"av_it_officer":   DepartmentEngineering,

	"head_chef": DepartmentGalley,
	"sous_chef": DepartmentGalley,
	"crew_chef": DepartmentGalley,
	"chef":      DepartmentGalley,
	"cook":      DepartmentGalley,
	"galley":    DepartmentGalley,
}

// departmentKeys holds the table keys longest first so the fallback prefers
// the most specific position.
var departmentKeys = func() []string {
	keys := make([]string, 0, len(departments))
	for k := range departments {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// DepartmentOf returns the department of a position, or "" when unknown.
func DepartmentOf(position string) string {
	p := NormalizePosition(position)
	if p == "" {
		return ""
	}
	if d, ok := departments[p]; ok {
		return d
	}
	for _, k := range departmentKeys {
		if strings.Contains(p, k) || strings.Contains(k, p) {
			return departments[k]
		}
	}
	return ""
}
