package ir

// Version constants stamped on stored reports.
const (
	// ReportVersion is the analysis report schema version.
	ReportVersion = "1"

	// EngineVersion is the reference rule engine version.
	EngineVersion = "0.3.0"
)
