package funding

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	submittedCounter   = metrics.NewRegisteredCounter("fundkeeper/tx/submitted", nil)
	confirmedCounter   = metrics.NewRegisteredCounter("fundkeeper/tx/confirmed", nil)
	failedCounter      = metrics.NewRegisteredCounter("fundkeeper/tx/failed", nil)
	reclaimSkipCounter = metrics.NewRegisteredCounter("fundkeeper/reclaim/skipped", nil)
	pollErrorMeter     = metrics.NewRegisteredMeter("fundkeeper/poll/errors", nil)
)
