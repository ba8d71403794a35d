package extract

// ListingSchema holds the selectors used on listing pages. Every selector is
// evaluated relative to one item block.
type ListingSchema struct {
	Item             string `mapstructure:"item"`
	Title            string `mapstructure:"title"`
	Synonyms         string `mapstructure:"synonyms"`
	Type             string `mapstructure:"type"`
	Season           string `mapstructure:"season"`
	Genre            string `mapstructure:"genre"`
	GenreSeparator   string `mapstructure:"genre_separator"`
	ShortDescription string `mapstructure:"short_description"`
	Link             string `mapstructure:"link"`
}

// DetailSchema holds the selectors used on detail pages.
type DetailSchema struct {
	Title           string `mapstructure:"title"`
	Synonyms        string `mapstructure:"synonyms"`
	Info            string `mapstructure:"info"`
	Label           string `mapstructure:"label"`
	Value           string `mapstructure:"value"`
	Description     string `mapstructure:"description"`
	Thumbnail       string `mapstructure:"thumbnail"`
	ThumbnailAttr   string `mapstructure:"thumbnail_attr"`
	ThumbnailSuffix string `mapstructure:"thumbnail_suffix"`
	Screenshots     string `mapstructure:"screenshots"`
	Trailer         string `mapstructure:"trailer"`
}

// Schema is the full selector set; it is data so that a site redesign only
// needs a configuration change.
type Schema struct {
	Listing ListingSchema `mapstructure:"listing"`
	Detail  DetailSchema  `mapstructure:"detail"`
}

// DefaultSchema returns the selectors for animego.org.
func DefaultSchema() Schema {
	return Schema{
		Listing: ListingSchema{
			Item:             "#anime-list-container > .col-12",
			Title:            ".h5",
			Synonyms:         ".small.mb-2",
			Type:             ".mb-2 > span",
			Season:           ".anime-year",
			Genre:            ".anime-genre",
			GenreSeparator:   ",",
			ShortDescription: ".description",
			Link:             ".h5 > a",
		},
		Detail: DetailSchema{
			Title:           ".anime-title > div > h1",
			Synonyms:        "div.anime-synonyms > ul > li",
			Info:            "dl.row",
			Label:           "dt",
			Value:           "dd",
			Description:     ".description",
			Thumbnail:       "div:nth-child(2) > img",
			ThumbnailAttr:   "srcset",
			ThumbnailSuffix: " 2x",
			Screenshots:     ".screenshots-block > a",
			Trailer:         ".video-item",
		},
	}
}
