package trader

import (
	"encoding/json"
	"fmt"
	"os"
)

// External decisions accepted from the signal file.
const (
	SignalBuy   = "BUY"
	SignalSell  = "SELL"
	SignalClose = "CLOSE"
)

// signalWatcher reads the latest decision for one symbol from a JSON
// document of the form {"BTCUSDT": "BUY"}. The file is re-read on every
// poll; a missing file simply means no signal.
type signalWatcher struct {
	path   string
	symbol string
}

func newSignalWatcher(path, symbol string) *signalWatcher {
	return &signalWatcher{path: path, symbol: symbol}
}

func (w *signalWatcher) latest() (string, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read signal file: %w", err)
	}

	var signals map[string]string
	if err := json.Unmarshal(data, &signals); err != nil {
		return "", fmt.Errorf("parse signal file: %w", err)
	}
	return signals[w.symbol], nil
}
