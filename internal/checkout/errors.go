package checkout

import "errors"

var (
	ErrUnknownReference = errors.New("unknown external reference")
	ErrAttemptTerminal  = errors.New("payment attempt already settled")
	IllegalStepError    = errors.New("illegal transition of checkout step")
)
