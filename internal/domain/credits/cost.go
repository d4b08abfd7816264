package credits

// Billable action costs, in credits.
const (
	DefaultStartingBalance int64 = 100

	ChatMessageCost       int64 = 1
	ImageAnalysisCost     int64 = 2
	ConferenceHostingCost int64 = 10
)
