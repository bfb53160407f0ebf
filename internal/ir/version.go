package ir

// Version constants for the canonical fragment format.
const (
	// FormatVersion is the version of the canonical fragment document.
	FormatVersion = "1"

	// CatalogVersion is the version of the embedded primitive catalog.
	CatalogVersion = "0.3.0"
)
