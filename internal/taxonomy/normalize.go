// Package taxonomy folds free-text legacy genre and tag labels into a bounded
// canonical set.
package taxonomy

import (
	"strings"
	"unicode"
)

// Other is the reserved catch-all genre.
const Other = "Other"

// Canonical lists the canonical genre names.
var Canonical = []string{
	"Action", "Adventure", "Comedy", "Drama", "Fantasy", "Gaming", "Harem",
	"Historical", "Horror", "Isekai", "LitRPG", "Martial Arts", "Mature",
	"Mecha", "Military", "Mystery", "Post-Apocalyptic", "Psychological",
	"Reincarnation", "Romance", "School Life", "Science Fiction",
	"Slice of Life", "Sports", "Supernatural", "Thriller", "Tragedy", "Urban",
	"Wuxia", "Xianxia", "Xuanhuan", Other,
}

// aliases maps normalized keys to canonical names. Canonical names are added
// under their own key in init.
var aliases = map[string]string{
	"sci fi":           "Science Fiction",
	"scifi":            "Science Fiction",
	"sf":               "Science Fiction",
	"science fantasy":  "Science Fiction",
	"space opera":      "Science Fiction",
	"game":             "Gaming",
	"games":            "Gaming",
	"vr":               "Gaming",
	"vrmmo":            "Gaming",
	"virtual reality":  "Gaming",
	"game lit":         "LitRPG",
	"gamelit":          "LitRPG",
	"lit rpg":          "LitRPG",
	"romcom":           "Comedy",
	"rom com":          "Comedy",
	"humor":            "Comedy",
	"humour":           "Comedy",
	"martial art":      "Martial Arts",
	"martialarts":      "Martial Arts",
	"kung fu":          "Martial Arts",
	"cultivation":      "Xianxia",
	"xian xia":         "Xianxia",
	"wu xia":           "Wuxia",
	"xuan huan":        "Xuanhuan",
	"school":           "School Life",
	"schoollife":       "School Life",
	"sol":              "Slice of Life",
	"slice of life":    "Slice of Life",
	"sliceoflife":      "Slice of Life",
	"post apocalyptic": "Post-Apocalyptic",
	"postapocalyptic":  "Post-Apocalyptic",
	"apocalypse":       "Post-Apocalyptic",
	"dystopia":         "Post-Apocalyptic",
	"transported":      "Isekai",
	"another world":    "Isekai",
	"reincarnated":     "Reincarnation",
	"rebirth":          "Reincarnation",
	"transmigration":   "Reincarnation",
	"romantic":         "Romance",
	"love":             "Romance",
	"shoujo":           "Romance",
	"josei":            "Romance",
	"high fantasy":     "Fantasy",
	"low fantasy":      "Fantasy",
	"dark fantasy":     "Fantasy",
	"magic":            "Fantasy",
	"adult":            "Mature",
	"smut":             "Mature",
	"suspense":         "Thriller",
	"crime":            "Mystery",
	"detective":        "Mystery",
	"history":          "Historical",
	"war":              "Military",
	"robots":           "Mecha",
	"robot":            "Mecha",
	"sport":            "Sports",
	"paranormal":       "Supernatural",
	"urban fantasy":    "Urban",
	"modern":           "Urban",
	"misc":             Other,
	"miscellaneous":    Other,
	"others":           Other,
	"uncategorized":    Other,
}

func init() {
	for _, name := range Canonical {
		aliases[Key(name)] = name
	}
}

// Key converts a label to its lookup form: lowercase, letters and digits
// only, with any other run collapsed to a single space.
func Key(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Canonicalize returns the canonical name for label and whether it was known.
// Unknown labels come back trimmed.
func Canonicalize(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if name, ok := aliases[Key(label)]; ok {
		return name, true
	}
	return label, false
}

// Normalize maps raw labels to canonical ones. Unknown labels pass through
// trimmed, empty labels are dropped and the result keeps the first
// occurrence of each label.
func Normalize(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, label := range raw {
		name, _ := Canonicalize(label)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
