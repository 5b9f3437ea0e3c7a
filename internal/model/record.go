package model

// Availability values normalized by the page adapter.
const (
	// InStock marks a listing that can be ordered.
	InStock = "In stock"
	// OutOfStock marks a listing that cannot be ordered.
	OutOfStock = "Out of stock"
)

// Record is one catalog listing extracted from a page.
// Records are values: once the adapter returns them they are only copied,
// never modified.
type Record struct {
	// Title is the full listing title (the anchor's title attribute, not the
	// truncated link text).
	Title string `json:"title"`

	// Price is the currency text as displayed, for example "£51.77".
	Price string `json:"price"`

	// Rating is the star rating.
	Rating Rating `json:"rating"`

	// Availability is InStock, OutOfStock or the raw status text when the
	// page used something else.
	Availability string `json:"stock_availability"`

	// DetailURL is the absolute URL of the listing's product page.
	DetailURL string `json:"product_page_url"`

	// ImageURL is the absolute URL of the listing's cover image.
	ImageURL string `json:"image_url"`
}

// CSVHeader is the column order used by tabular exports.
var CSVHeader = []string{
	"title",
	"price",
	"rating",
	"stock_availability",
	"product_page_url",
	"image_url",
}

// CSVRow returns the record's fields in CSVHeader order.
func (r Record) CSVRow() []string {
	return []string{
		r.Title,
		r.Price,
		r.Rating.String(),
		r.Availability,
		r.DetailURL,
		r.ImageURL,
	}
}

// Available reports whether the listing is in stock.
func (r Record) Available() bool {
	return r.Availability == InStock
}
