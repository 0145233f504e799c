package zenodo

// Deposition is the subset of the deposition resource the catalog needs.
type Deposition struct {
	ID        int64  `json:"id"`
	DOI       string `json:"doi,omitempty"`
	State     string `json:"state,omitempty"`
	Submitted bool   `json:"submitted,omitempty"`
}

// DepositionFile describes one uploaded file within a deposition.
type DepositionFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Checksum string `json:"checksum,omitempty"`
}

// Creator identifies a depositor in record metadata. Name uses the
// "Family, Given" form the archive expects.
type Creator struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// Community attaches the record to a curated community.
type Community struct {
	Identifier string `json:"identifier"`
}

// Metadata is the deposition metadata payload. UploadType is always
// "dataset" for recording sessions.
type Metadata struct {
	Title       string      `json:"title"`
	UploadType  string      `json:"upload_type"`
	Description string      `json:"description"`
	Creators    []Creator   `json:"creators"`
	Communities []Community `json:"communities,omitempty"`
}

// apiError is the error document returned by the deposition API.
type apiError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}
