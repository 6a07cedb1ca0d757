package cli

// Default values for CLI flags and formatted output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2

	welcomeBanner = "Welcome to the Ubuntu Image Fetcher\nA tool for mindfully collecting images from the web\n"
	urlPrompt     = "Please enter one or more image URLs (separated by commas): "
	closingLine   = "Connection strengthened. Community enriched."
)
