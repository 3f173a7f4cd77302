package schema

// Annotation carries the business meaning of a warehouse table. The
// generator prompt is built from these instead of raw DDL so the model
// sees what each table and column is for.
type Annotation struct {
	Description string
	Columns     map[string]string
}

var annotations = map[string]Annotation{
	"Album": {
		Description: "Music albums in the store catalog",
		Columns: map[string]string{
			"AlbumId":  "Unique identifier for each album",
			"Title":    "Album title/name",
			"ArtistId": "Foreign key to Artist table - identifies the artist who created this album",
		},
	},
	"Artist": {
		Description: "Music artists and bands",
		Columns: map[string]string{
			"ArtistId": "Unique identifier for each artist",
			"Name":     "Artist or band name",
		},
	},
	"Customer": {
		Description: "Store customers who make purchases",
		Columns: map[string]string{
			"CustomerId":   "Unique identifier for each customer",
			"FirstName":    "Customer's first name",
			"LastName":     "Customer's last name",
			"Company":      "Customer's company (if applicable)",
			"Address":      "Street address",
			"City":         "City name",
			"State":        "State or province",
			"Country":      "Country name",
			"PostalCode":   "Postal/ZIP code",
			"Phone":        "Phone number",
			"Fax":          "Fax number",
			"Email":        "Email address",
			"SupportRepId": "Foreign key to Employee table - assigned support representative",
		},
	},
	"Employee": {
		Description: "Store employees and their organizational structure",
		Columns: map[string]string{
			"EmployeeId": "Unique identifier for each employee",
			"LastName":   "Employee's last name",
			"FirstName":  "Employee's first name",
			"Title":      "Job title",
			"ReportsTo":  "Foreign key to Employee table - manager's EmployeeId",
			"BirthDate":  "Date of birth",
			"HireDate":   "Date hired",
			"Address":    "Street address",
			"City":       "City name",
			"State":      "State or province",
			"Country":    "Country name",
			"PostalCode": "Postal/ZIP code",
			"Phone":      "Phone number",
			"Fax":        "Fax number",
			"Email":      "Email address",
		},
	},
	"Genre": {
		Description: "Music genres/categories",
		Columns: map[string]string{
			"GenreId": "Unique identifier for each genre",
			"Name":    "Genre name (e.g., Rock, Jazz, Metal)",
		},
	},
	"Invoice": {
		Description: "Customer purchase invoices (sales transactions)",
		Columns: map[string]string{
			"InvoiceId":         "Unique identifier for each invoice",
			"CustomerId":        "Foreign key to Customer table - who made the purchase",
			"InvoiceDate":       "Date and time of purchase",
			"BillingAddress":    "Billing street address",
			"BillingCity":       "Billing city",
			"BillingState":      "Billing state/province",
			"BillingCountry":    "Billing country",
			"BillingPostalCode": "Billing postal code",
			"Total":             "Total invoice amount in USD",
		},
	},
	"InvoiceLine": {
		Description: "Individual line items within invoices (tracks purchased)",
		Columns: map[string]string{
			"InvoiceLineId": "Unique identifier for each line item",
			"InvoiceId":     "Foreign key to Invoice table - which invoice this belongs to",
			"TrackId":       "Foreign key to Track table - which track was purchased",
			"UnitPrice":     "Price per track in USD",
			"Quantity":      "Number of units purchased (usually 1 for digital tracks)",
		},
	},
	"MediaType": {
		Description: "Types of media formats for tracks",
		Columns: map[string]string{
			"MediaTypeId": "Unique identifier for each media type",
			"Name":        "Media type name (e.g., MPEG audio, AAC audio)",
		},
	},
	"Playlist": {
		Description: "Curated playlists of tracks",
		Columns: map[string]string{
			"PlaylistId": "Unique identifier for each playlist",
			"Name":       "Playlist name",
		},
	},
	"PlaylistTrack": {
		Description: "Junction table linking playlists to tracks (many-to-many)",
		Columns: map[string]string{
			"PlaylistId": "Foreign key to Playlist table",
			"TrackId":    "Foreign key to Track table",
		},
	},
	"Track": {
		Description: "Individual music tracks available for purchase",
		Columns: map[string]string{
			"TrackId":      "Unique identifier for each track",
			"Name":         "Track title/name",
			"AlbumId":      "Foreign key to Album table - which album this track belongs to",
			"MediaTypeId":  "Foreign key to MediaType table - format of the track",
			"GenreId":      "Foreign key to Genre table - musical genre",
			"Composer":     "Track composer/songwriter",
			"Milliseconds": "Track duration in milliseconds",
			"Bytes":        "File size in bytes",
			"UnitPrice":    "Price per track in USD",
		},
	},
}
