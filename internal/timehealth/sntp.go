package timehealth

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// queryNTP asks a reference server for the local clock offset through an
// independent SNTP implementation
func queryNTP(server string, timeout time.Duration) (time.Duration, error) {
	response, err := ntp.QueryWithOptions(server, ntp.QueryOptions{
		Timeout: timeout,
	})
	if err != nil {
		return 0, fmt.Errorf("NTP query failed: %w", err)
	}
	if err := response.Validate(); err != nil {
		return 0, fmt.Errorf("NTP response invalid: %w", err)
	}

	return response.ClockOffset, nil
}

// crossCheck queries the reference servers in order until one answers and
// flags disagreement with the consensus larger than MaxOffset
func (th *TimeHealth) crossCheck(status *Status, haveConsensus bool) {
	for _, server := range th.config.ReferenceServers {
		offset, err := th.query(server, th.config.ReferenceTimeout)
		if err != nil {
			th.log.Debug("Reference server failed", "server", server, "error", err)
			continue // Try next server
		}

		status.ReferenceServer = server
		status.ReferenceOffset = offset

		if haveConsensus {
			if diff := absDuration(offset - status.Offset); diff > th.config.MaxOffset {
				th.log.Warn("Reference disagrees with consensus",
					"server", server,
					"reference_offset", offset,
					"consensus_offset", status.Offset,
					"difference", diff)
			}
		}
		return
	}

	th.log.Warn("No reference server responded", "servers", th.config.ReferenceServers)
}
