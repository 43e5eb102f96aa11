package config

import "strings"

// Policy selects how agents pick stations and how they are admitted.
type Policy int

// The traversal policies.
const (
	// PolicyOrdered sends every agent through station 0 first and admits with
	// a blocking gate.
	PolicyOrdered Policy = iota + 1

	// PolicyDistributed spreads agents over the stations (agent i starts at
	// station i mod K) and admits with a blocking gate.
	PolicyDistributed

	// PolicyNonBlocking rotates like PolicyDistributed but admits by
	// spin-polling the station occupancy.
	PolicyNonBlocking
)

var policyTokens = map[string]Policy{
	"i":            PolicyOrdered,
	"ordered":      PolicyOrdered,
	"in-order":     PolicyOrdered,
	"d":            PolicyDistributed,
	"distributed":  PolicyDistributed,
	"n":            PolicyNonBlocking,
	"non-blocking": PolicyNonBlocking,
	"nonblocking":  PolicyNonBlocking,
}

// ParsePolicy maps a command-line token to a Policy.
func ParsePolicy(token string) (Policy, error) {
	p, ok := policyTokens[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return 0, NewConfigError("policy", token+" is not a valid algorithm")
	}

	return p, nil
}

// Blocking tells if the policy admits agents through a permit pool.
func (p Policy) Blocking() bool {
	return p == PolicyOrdered || p == PolicyDistributed
}

func (p Policy) String() string {
	switch p {
	case PolicyOrdered:
		return "ordered"
	case PolicyDistributed:
		return "distributed"
	case PolicyNonBlocking:
		return "non-blocking"
	default:
		return "unknown"
	}
}
