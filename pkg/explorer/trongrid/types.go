package trongrid

type txResponse struct {
	TxID    string    `json:"txID"`
	Ret     []txRet   `json:"ret"`
	RawData txRawData `json:"raw_data"`
}

type txRet struct {
	ContractRet string `json:"contractRet"`
}

type txRawData struct {
	Data      string       `json:"data"`
	Timestamp int64        `json:"timestamp"`
	Contract  []txContract `json:"contract"`
}

type txContract struct {
	Type      string      `json:"type"`
	Parameter txParameter `json:"parameter"`
}

type txParameter struct {
	Value txContractValue `json:"value"`
}

type txContractValue struct {
	Data            string `json:"data"`
	OwnerAddress    string `json:"owner_address"`
	ContractAddress string `json:"contract_address"`
}

type trc20TransfersResponse struct {
	Data []trc20Transfer `json:"data"`
}

type trc20Transfer struct {
	TransactionId  string         `json:"transaction_id"`
	From           string         `json:"from"`
	To             string         `json:"to"`
	Type           string         `json:"type"`
	Value          string         `json:"value"`
	BlockTimestamp int64          `json:"block_timestamp"`
	TokenInfo      trc20TokenInfo `json:"token_info"`
}

type trc20TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type nowBlockResponse struct {
	BlockHeader struct {
		RawData struct {
			Number int `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
}
