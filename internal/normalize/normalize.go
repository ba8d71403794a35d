// Package normalize turns a raw detail field set into the canonical record
// shape: localized labels become canonical identifiers, delimiter-joined
// strings become lists, and the character roster becomes role/performer pairs.
package normalize

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

const (
	// Delimiter separates multiple values inside one extracted string.
	Delimiter = " , "
	// VoiceMarker flags a roster entry naming its voice performer.
	VoiceMarker = "озвучивает"

	fieldID         = "id"
	fieldCharacters = "characters"
)

var voicePattern = regexp.MustCompile(`^(.*?)\(\s*` + VoiceMarker + `\s+(.*?)\s*\)`)

// DefaultLabels maps animego.org's Russian labels to canonical names.
func DefaultLabels() map[string]string {
	return map[string]string{
		"Следующий эпизод":       "next_episode",
		"Тип":                    "type",
		"Эпизоды":                "episodes",
		"Статус":                 "status",
		"Жанр":                   "genre",
		"Первоисточник":          "source",
		"Выпуск":                 "release_date",
		"Студия":                 "studio",
		"Рейтинг MPAA":           "mmpa_rating",
		"Возрастные ограничения": "age_restrictions",
		"Длительность":           "duration",
		"Озвучка":                "voiceover",
		"Снят по манге":          "manga",
		"Главные герои":          "characters",
		"Автор оригинала":        "author",
		"Режиссёр":               "director",
		"Сезон":                  "season",
	}
}

// Normalizer applies the translation table and value reshaping.
type Normalizer struct {
	labels map[string]string
}

// New builds a Normalizer. A nil table uses DefaultLabels.
func New(labels map[string]string) *Normalizer {
	if labels == nil {
		labels = DefaultLabels()
	}
	table := make(map[string]string, len(labels))
	for k, v := range labels {
		table[k] = v
	}
	return &Normalizer{labels: table}
}

// Translate maps a localized label to its canonical identifier. Unknown
// labels are returned unchanged.
func (n *Normalizer) Translate(label string) string {
	if canonical, ok := n.labels[label]; ok {
		return canonical
	}
	return label
}

// Record builds the DetailRecord for id from a raw field set. Reserved names
// (title, synonyms, characters, description, thumbnail, screenshots,
// trailer) are kept as-is; every other name is translated.
func (n *Normalizer) Record(id int, raw catalog.Fields) catalog.DetailRecord {
	out := make(catalog.Fields, 0, len(raw))
	for _, f := range raw {
		name := f.Name
		if !reserved(name) {
			name = n.Translate(name)
		}
		out.Set(name, f.Value)
	}
	for i, f := range out {
		switch f.Name {
		case fieldID:
		case fieldCharacters:
			out[i].Value = ParseCharacters(f.Value)
		default:
			out[i].Value = Split(f.Value)
		}
	}
	return catalog.DetailRecord{ID: id, Fields: out}
}

// Split replaces a string holding Delimiter with its parts. Every other value,
// including nil and strings without the delimiter, is returned unchanged.
func Split(v any) any {
	s, ok := v.(string)
	if !ok || !strings.Contains(s, Delimiter) {
		return v
	}
	return strings.Split(s, Delimiter)
}

// ParseCharacters converts raw roster entries. Entries holding VoiceMarker
// become {role: performer}; the rest stay plain.
func ParseCharacters(v any) []catalog.Character {
	var entries []string
	switch raw := v.(type) {
	case []string:
		entries = raw
	case string:
		entries = []string{raw}
	case []catalog.Character:
		return raw
	}
	out := make([]catalog.Character, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ParseCharacter(entry))
	}
	return out
}

// ParseCharacter splits "Role (озвучивает Performer)" into its parts.
func ParseCharacter(entry string) catalog.Character {
	if !strings.Contains(entry, VoiceMarker) {
		return catalog.Character{Role: entry}
	}
	m := voicePattern.FindStringSubmatch(entry)
	if m == nil {
		return catalog.Character{Role: entry}
	}
	performer := strings.TrimSpace(strings.TrimRight(m[2], " )"))
	return catalog.Character{Role: strings.TrimSpace(m[1]), Performer: &performer}
}

func reserved(name string) bool {
	switch name {
	case "title", "synonyms", fieldCharacters, "description", "thumbnail", "screenshots", "trailer", fieldID:
		return true
	}
	return false
}
