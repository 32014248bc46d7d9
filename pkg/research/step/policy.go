package step

import (
	"slingshot-be/pkg/research/citation"
)

// Policy is the completeness check the reflecting step applies.
type Policy struct {
	MinCitations        int
	RequiredSourceTypes []string
}

type Verdict struct {
	Complete  bool
	Citations int
	// Required is the policy's minimum citation count.
	Required int
	// Missing lists required source types with no citation yet.
	Missing []string
}

func (p Policy) Check(store *citation.Store) Verdict {
	v := Verdict{Citations: store.Len(), Required: p.MinCitations}
	seen := store.SourceTypes()
	for _, t := range p.RequiredSourceTypes {
		if !seen[t] {
			v.Missing = append(v.Missing, t)
		}
	}
	v.Complete = v.Citations >= p.MinCitations && len(v.Missing) == 0
	return v
}
