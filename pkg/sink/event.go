package sink

import "encoding/json"

// Source tags every event emitted by this tool.
const Source = "ens-namer"

// Event is one metrics record, emitted after each confirmed write.
type Event struct {
	CorrelationID   string `json:"correlation_id"`
	ContractAddress string `json:"contract_address"`
	EnsName         string `json:"ens_name"`
	DeployerAddress string `json:"deployer_address"`
	Network         uint64 `json:"network"`
	Timestamp       int64  `json:"timestamp"`
	Step            string `json:"step"`
	TxnHash         string `json:"txn_hash"`
	ContractType    string `json:"contract_type"`
	OpType          string `json:"op_type"`
	Source          string `json:"source"`
}

func (e Event) encode() []byte {
	data, _ := json.Marshal(e)
	return data
}
