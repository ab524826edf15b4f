package timeline

// Markers names the structure the extractor looks for. Class fields hold a
// single class token; selector fields hold CSS selectors evaluated against
// the entity root (or the column, for the signatures).
type Markers struct {
	Entity string // class of an entity root

	Author         string // selector: author link
	DisplayName    string // selector: display name container
	ContentWarning string // selector: spoiler control
	Time           string // selector: time element
	TimeAttr       string // attribute holding the machine-readable timestamp
	Anchor         string // selector: candidate media anchors
	Video          string // selector: video element
	Permalink      string // selector: permalink anchor
	BoostIcon      string // selector: icon inside the boost button
	FavouriteIcon  string // selector: icon inside the favourite button

	Reshare string // class of the sibling preceding a reshared entity

	Column        string // class of a column ancestor
	Boundary      string // tag where the ancestor walk stops
	HomeSignature string // selector inside a column marking the home column
	UserSignature string // selector inside a column marking a profile column
}

// DefaultMarkers matches the Mastodon web UI.
func DefaultMarkers() Markers {
	return Markers{
		Entity:         "status",
		Author:         ".status__display-name",
		DisplayName:    ".display-name",
		ContentWarning: ".media-spoiler",
		Time:           "time",
		TimeAttr:       "datetime",
		Anchor:         "a",
		Video:          "video",
		Permalink:      "a.status__relative-time",
		BoostIcon:      "button.icon-button > i.fa.fa-fw.fa-retweet",
		FavouriteIcon:  "button.icon-button > i.fa.fa-fw.fa-star",
		Reshare:        "status__prepend",
		Column:         "column",
		Boundary:       "body",
		HomeSignature:  ".column-header > i.fa.fa-fw.fa-home",
		UserSignature:  ".scrollable > div > div > .account__header",
	}
}

// withDefaults fills empty fields from DefaultMarkers.
func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Entity, d.Entity)
	fill(&m.Author, d.Author)
	fill(&m.DisplayName, d.DisplayName)
	fill(&m.ContentWarning, d.ContentWarning)
	fill(&m.Time, d.Time)
	fill(&m.TimeAttr, d.TimeAttr)
	fill(&m.Anchor, d.Anchor)
	fill(&m.Video, d.Video)
	fill(&m.Permalink, d.Permalink)
	fill(&m.BoostIcon, d.BoostIcon)
	fill(&m.FavouriteIcon, d.FavouriteIcon)
	fill(&m.Reshare, d.Reshare)
	fill(&m.Column, d.Column)
	fill(&m.Boundary, d.Boundary)
	fill(&m.HomeSignature, d.HomeSignature)
	fill(&m.UserSignature, d.UserSignature)
	return m
}
