package domain

// MarketState mirrors the JIF stream's view of both Korean venues. It is
// a plain value; the single-writer/many-reader guarding lives in
// internal/marketstate, not here.
type MarketState struct {
	KRXStatus          string
	NXTStatus          string
	KRXActive          bool
	NXTActive          bool
	KRXCircuitBreaker  bool
	KRXSidecar         bool
	NXTCircuitBreaker  bool
	NXTSidecar         bool
}

// SessionEndStatus is the jstatus value meaning a venue has closed trading
// for the day.
const SessionEndStatus = "41"
