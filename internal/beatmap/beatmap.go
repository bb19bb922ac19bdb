package beatmap

// Beatmap is a single difficulty of a beatmap set as returned by the feed.
// Items are transient: they are matched and delivered within one check cycle
// and never stored.
type Beatmap struct {
	ID      string  `json:"beatmap_id"`
	SetID   string  `json:"beatmapset_id"`
	Artist  string  `json:"artist"`
	Title   string  `json:"title"`
	Creator string  `json:"creator"`
	Source  string  `json:"source"`
	Version string  `json:"version"`
	Status  string  `json:"status"`
	Mode    string  `json:"mode"`
	Tags    string  `json:"tags"`
	Stars   float64 `json:"difficultyrating"`
	Length  int     `json:"total_length"`
}

// attributes is the closed set of names users may subscribe to. Numeric
// fields (Stars, Length) are presentation data only: the matcher's operator
// is exact string equality, which is meaningless for them.
var attributes = []string{"artist", "title", "creator", "source", "version", "status", "mode", "tags"}

// IsAttribute reports whether name is a subscribable attribute.
func IsAttribute(name string) bool {
	for _, a := range attributes {
		if a == name {
			return true
		}
	}
	return false
}

// Attributes returns the subscribable attribute names.
func Attributes() []string {
	out := make([]string, len(attributes))
	copy(out, attributes)
	return out
}

// Attribute returns the raw value of the named attribute, or false if the
// name is not in the subscribable set.
func (b *Beatmap) Attribute(name string) (string, bool) {
	switch name {
	case "artist":
		return b.Artist, true
	case "title":
		return b.Title, true
	case "creator":
		return b.Creator, true
	case "source":
		return b.Source, true
	case "version":
		return b.Version, true
	case "status":
		return b.Status, true
	case "mode":
		return b.Mode, true
	case "tags":
		return b.Tags, true
	}
	return "", false
}
