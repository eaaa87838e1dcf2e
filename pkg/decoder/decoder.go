package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrUnknownEvent = errors.New("event signature not found in ABI")

// ABIWrapper wraps the decoding logic using go-ethereum's ABI parser.
// It may hold several ABIs; the first one that knows an event wins.
type ABIWrapper struct {
	abis []*abi.ABI
}

// NewFromJSON creates a decoder from a JSON ABI string
func NewFromJSON(jsonStr string) (*ABIWrapper, error) {
	parsed, err := abi.JSON(strings.NewReader(jsonStr))
	if err != nil {
		return nil, err
	}
	return &ABIWrapper{abis: []*abi.ABI{&parsed}}, nil
}

// New creates a decoder over already parsed ABIs
func New(abis ...*abi.ABI) *ABIWrapper {
	return &ABIWrapper{abis: abis}
}

// DecodedLog contains parsed human-readable data from a transaction log.
type DecodedLog struct {
	Name   string                 // Event name (e.g., AddrChanged)
	Inputs map[string]interface{} // Parameter key-value pairs
}

// Decode parses a single Log
func (w *ABIWrapper) Decode(log types.Log) (*DecodedLog, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	// 1. Find the Event definition based on Topic[0] (Event Signature)
	var (
		parsed *abi.ABI
		event  *abi.Event
	)
	for _, a := range w.abis {
		if ev, err := a.EventByID(log.Topics[0]); err == nil {
			parsed, event = a, ev
			break
		}
	}
	if event == nil {
		return nil, ErrUnknownEvent
	}

	result := &DecodedLog{
		Name:   event.Name,
		Inputs: make(map[string]interface{}),
	}

	// 2. Parse Data (non-indexed parameters)
	if len(log.Data) > 0 {
		if err := parsed.UnpackIntoMap(result.Inputs, event.Name, log.Data); err != nil {
			return nil, err
		}
	}

	// 3. Parse Topics (indexed parameters)
	var indexedArgs abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexedArgs = append(indexedArgs, arg)
		}
	}

	// Topics[0] is the signature, the rest are indexed parameters
	if len(log.Topics)-1 != len(indexedArgs) {
		return nil, fmt.Errorf("topic count mismatch: expected %d, got %d", len(indexedArgs), len(log.Topics)-1)
	}

	if err := abi.ParseTopicsIntoMap(result.Inputs, indexedArgs, log.Topics[1:]); err != nil {
		return nil, err
	}

	return result, nil
}

// DecodeReceipt decodes every known event in receipt, skipping logs the
// wrapped ABIs do not describe.
func (w *ABIWrapper) DecodeReceipt(receipt *types.Receipt) []*DecodedLog {
	if receipt == nil {
		return nil
	}
	var out []*DecodedLog
	for _, l := range receipt.Logs {
		if l == nil {
			continue
		}
		d, err := w.Decode(*l)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
