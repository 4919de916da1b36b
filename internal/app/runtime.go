package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

const testModeEnv = "PHARMOS_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

// InTestMode reports whether runtime side effects (servers, pools, workers)
// should be skipped. The environment is read once on first call.
func InTestMode() bool {
	testMode.once.Do(refreshTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads the flag after a test mutates the environment.
func RefreshTestMode() {
	refreshTestMode()
}

func refreshTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.on.Store(on)
}
