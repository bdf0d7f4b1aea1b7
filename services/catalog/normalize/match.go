package normalize

import (
	"easypce-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

type SectionType string

const (
	TypeClass       SectionType = "Class"
	TypeDrill       SectionType = "Drill"
	TypeEarTraining SectionType = "Ear training"
	TypeFilm        SectionType = "Film"
	TypeLab         SectionType = "Lab"
	TypeLecture     SectionType = "Lecture"
	TypePrecept     SectionType = "Precept"
	TypeSeminar     SectionType = "Seminar"
	TypeStudio      SectionType = "Studio"
)

var sectionTypes = []string{
	string(TypeClass),
	string(TypeDrill),
	string(TypeEarTraining),
	string(TypeFilm),
	string(TypeLab),
	string(TypeLecture),
	string(TypePrecept),
	string(TypeSeminar),
	string(TypeStudio),
}

type SectionStatus string

const (
	StatusOpen      SectionStatus = "Open"
	StatusClosed    SectionStatus = "Closed"
	StatusCancelled SectionStatus = "Cancelled"
)

var sectionStatuses = []string{
	string(StatusOpen),
	string(StatusClosed),
	string(StatusCancelled),
}

const matchThreshold = 0.88

// matchEnum resolves free text against a closed set of names, first by
// normalized equality then by the closest Jaro-Winkler score above the
// threshold.
func matchEnum(value string, names []string) (string, bool) {
	normalized := textutil.NormalizeName(value)
	if normalized == "" {
		return "", false
	}
	for _, name := range names {
		if textutil.NormalizeName(name) == normalized {
			return name, true
		}
	}

	best := ""
	bestScore := 0.0
	for _, name := range names {
		score := matchr.JaroWinkler(normalized, textutil.NormalizeName(name), false)
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	if bestScore < matchThreshold {
		return "", false
	}
	return best, true
}

func ParseSectionType(value string) (SectionType, error) {
	name, ok := matchEnum(value, sectionTypes)
	if !ok {
		return "", invalid("section type", value, "unknown type")
	}
	return SectionType(name), nil
}

func ParseSectionStatus(value string) (SectionStatus, error) {
	name, ok := matchEnum(value, sectionStatuses)
	if !ok {
		return "", invalid("section status", value, "unknown status")
	}
	return SectionStatus(name), nil
}
