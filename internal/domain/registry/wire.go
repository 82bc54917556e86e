package registry

import "encoding/json"

// Wire frame builders. The three outbound shapes are {type,data},
// {type,error:{code,detail}} and {type:"updates",seq,updates:[...]}.

type dataFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type errorBody struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

type errorFrame struct {
	Type  string    `json:"type"`
	Error errorBody `json:"error"`
}

type updatesFrame struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq"`
	Updates json.RawMessage `json:"updates"`
}

// DataFrame builds a {type,data} reply.
func DataFrame(typ string, data any) []byte {
	raw, err := json.Marshal(dataFrame{Type: typ, Data: data})
	if err != nil {
		raw, _ = json.Marshal(errorFrame{Type: typ, Error: errorBody{Code: 500, Detail: "Internal server error"}})
	}
	return raw
}

// ErrorFrame builds a {type,error:{code,detail}} reply.
func ErrorFrame(typ string, code int, detail string) []byte {
	raw, _ := json.Marshal(errorFrame{Type: typ, Error: errorBody{Code: code, Detail: detail}})
	return raw
}

// UpdatesFrame wraps a marshalled batch. The updates argument is spliced
// in verbatim, so a replayed log row frames byte-identically to the
// original flush.
func UpdatesFrame(seq int64, updatesJSON json.RawMessage) []byte {
	raw, _ := json.Marshal(updatesFrame{Type: "updates", Seq: seq, Updates: updatesJSON})
	return raw
}
