package telelink

import (
	"errors"
	"sync"
)

// ErrNoDriver is returned by OpenDialer when no protocol client
// implementation has been linked into the binary.
var ErrNoDriver = errors.New("telelink: no protocol driver registered")

// DriverFunc builds a Dialer from the application credentials.
type DriverFunc func(apiID int, apiHash string) Dialer

var (
	driverMu sync.RWMutex
	driverFn DriverFunc
)

// RegisterDriver installs the protocol client implementation. Call it from an
// init function in the driver package, database/sql style. The last
// registration wins.
func RegisterDriver(fn DriverFunc) {
	driverMu.Lock()
	defer driverMu.Unlock()
	driverFn = fn
}

// OpenDialer returns a Dialer built by the registered driver.
func OpenDialer(apiID int, apiHash string) (Dialer, error) {
	driverMu.RLock()
	defer driverMu.RUnlock()
	if driverFn == nil {
		return nil, ErrNoDriver
	}
	return driverFn(apiID, apiHash), nil
}
