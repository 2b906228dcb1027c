// Package lane provides the core retrieval-lane types shared across the
// orchestrator: lane identities, evidence items, lane results, the adapter
// contract, and cache fingerprinting.
package lane

import "fmt"

// ID identifies a retrieval lane. Adding a lane means extending the enum
// here and the registry defaults; no other component hard-codes lanes.
type ID string

const (
	Web     ID = "web"
	News    ID = "news"
	Markets ID = "markets"
	Vector  ID = "vector"
	KG      ID = "kg"
	Keyword ID = "keyword"
)

// All returns every known lane ID in a stable order.
func All() []ID {
	return []ID{Web, News, Markets, Vector, KG, Keyword}
}

// Heavy returns the lanes with real startup cost (index handles,
// embedding pipelines, graph sessions). Only these take warmup
// canaries; the metered external lanes do not.
func Heavy() []ID {
	return []ID{Vector, KG, Keyword}
}

// IsValid reports whether id names a known lane.
func (id ID) IsValid() bool {
	switch id {
	case Web, News, Markets, Vector, KG, Keyword:
		return true
	}
	return false
}

// ParseID validates a raw string as a lane ID.
func ParseID(s string) (ID, error) {
	id := ID(s)
	if !id.IsValid() {
		return "", fmt.Errorf("lane.ParseID: unknown lane %q", s)
	}
	return id, nil
}

// QueryClass selects a budget profile and a fusion weight set.
type QueryClass string

const (
	ClassSimple     QueryClass = "simple"
	ClassTechnical  QueryClass = "technical"
	ClassResearch   QueryClass = "research"
	ClassMultimedia QueryClass = "multimedia"
)

// IsValid reports whether c is a known query class.
func (c QueryClass) IsValid() bool {
	switch c {
	case ClassSimple, ClassTechnical, ClassResearch, ClassMultimedia:
		return true
	}
	return false
}
