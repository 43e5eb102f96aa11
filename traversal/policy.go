package traversal

import "github.com/sarchlab/ratmaze/config"

// FirstStation returns the station an agent visits first.
//
// Under the ordered policy every agent enters the maze through station 0, a
// single shared entry point, and then follows the later stations in order.
// The distributed and non-blocking policies spread the agents, agent i
// starting at station i mod numStations.
func FirstStation(policy config.Policy, agentID, numStations int) int {
	if numStations <= 0 {
		panic("maze has no station")
	}

	switch policy {
	case config.PolicyOrdered:
		return 0
	case config.PolicyDistributed, config.PolicyNonBlocking:
		return agentID % numStations
	default:
		panic("unknown policy " + policy.String())
	}
}

// NextStation returns the station after cur, wrapping to 0 after the last.
func NextStation(cur, numStations int) int {
	if cur >= numStations-1 {
		return 0
	}

	return cur + 1
}
