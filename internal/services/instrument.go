package services

import (
	"strings"
)

const (
	FamilyWoodwinds  = "Woodwinds"
	FamilyBrass      = "Brass"
	FamilyStrings    = "Strings"
	FamilyPercussion = "Percussion"
	FamilyKeyboard   = "Keyboard"
	FamilyVocal      = "Vocal"
	FamilyOther      = "Other"
)

// familyKeywords is checked in order; "bass clarinet" must hit
// Woodwinds before the Strings "bass" keyword can claim it.
var familyKeywords = []struct {
	family   string
	keywords []string
}{
	{FamilyWoodwinds, []string{"flute", "piccolo", "clarinet", "oboe", "english horn", "bassoon", "sax", "recorder"}},
	{FamilyBrass, []string{"trumpet", "cornet", "flugel", "trombone", "horn", "tuba", "euphonium", "baritone horn", "sousaphone"}},
	{FamilyPercussion, []string{"drum", "percussion", "timpani", "marimba", "xylophone", "vibraphone", "glockenspiel", "bells", "cymbal", "mallet", "tambourine", "triangle"}},
	{FamilyKeyboard, []string{"piano", "keyboard", "organ", "celesta", "harpsichord", "synth"}},
	{FamilyVocal, []string{"voice", "vocal", "soprano", "alto", "tenor voice", "choir", "chorus"}},
	{FamilyStrings, []string{"violin", "viola", "cello", "bass", "harp", "guitar", "mandolin", "ukulele"}},
}

// GuessInstrumentFamily classifies an instrument name by keyword
// match, falling back to Other.
func GuessInstrumentFamily(name string) string {
	lower := strings.ToLower(name)
	for _, fk := range familyKeywords {
		for _, kw := range fk.keywords {
			if strings.Contains(lower, kw) {
				return fk.family
			}
		}
	}
	return FamilyOther
}

// SplitFullName splits a person's name taking the last
// whitespace-delimited token as the last name. Multi-word surnames are
// knowingly misparsed; fixing that needs a product decision.
func SplitFullName(fullName string) (first, last string) {
	fields := strings.Fields(fullName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return "", fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
}
