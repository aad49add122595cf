package pricedb

type Sale struct {
	PriceUSD *float64 `graphql:"priceUSD" json:"priceUSD"`
	Date     *string  `graphql:"date" json:"date"`
}

type ArtistWork struct {
	Permalink string `graphql:"permalink" json:"permalink"`
	WorkTitle string `graphql:"workTitle" json:"workTitle"`
	Sales     []Sale `graphql:"sales" json:"sales"`
}

type Artist struct {
	ArtistID   string       `graphql:"artistId" json:"artistId"`
	Permalink  string       `graphql:"permalink" json:"permalink"`
	ArtistName string       `graphql:"artistName" json:"artistName"`
	Works      []ArtistWork `graphql:"works" json:"works"`
}

type WorkDetails struct {
	Permalink      string   `graphql:"permalink" json:"permalink"`
	WorkTitle      string   `graphql:"workTitle" json:"workTitle"`
	LastSaleDate   *string  `graphql:"lastSaleDate" json:"lastSaleDate"`
	LastSalePrice  *float64 `graphql:"lastSalePrice" json:"lastSalePrice"`
	FirstSaleDate  *string  `graphql:"firstSaleDate" json:"firstSaleDate"`
	FirstSalePrice *float64 `graphql:"firstSalePrice" json:"firstSalePrice"`
	Sales          []Sale   `graphql:"sales" json:"sales"`
}

// MarketRecord is the market view of a submitted work. Field order is the
// order the organizer sees.
type MarketRecord struct {
	Title         string   `json:"title"`
	Artist        string   `json:"artist"`
	LastSaleDate  *string  `json:"lastSaleDate"`
	LastSalePrice *float64 `json:"lastSalePrice"`
}

type artistDetailsQuery struct {
	Artist *Artist `graphql:"artist(artistId: $artistId)"`
}

type artworkQuery struct {
	Artwork *WorkDetails `graphql:"artwork: work(permalink: $permalink)"`
}
