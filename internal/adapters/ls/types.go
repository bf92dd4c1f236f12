package ls

import "encoding/json"

// Venue TR payloads are wrapped as tXXXXInBlock / tXXXXOutBlock[1] per the
// external interface contract (spec §6). Each response struct carries its
// own rsp_cd/rsp_msg fields and implements venueResponse (envelope()) so
// the retry loop can classify rsp_cd failures.

type ohlcOutBlock struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
	Value  string `json:"value"`
}

type ohlcResponse struct {
	Env    venueEnvelope  `json:"-"`
	RspCd  string         `json:"rsp_cd"`
	RspMsg string         `json:"rsp_msg"`
	Block  []ohlcOutBlock `json:"t8413OutBlock1"`
}

func (r *ohlcResponse) envelope() venueEnvelope {
	return venueEnvelope{RspCd: r.RspCd, RspMsg: r.RspMsg}
}

type orderOutBlock struct {
	OrderNo string `json:"OrdNo"`
	OrgOrdNo string `json:"OrgOrdNo"`
}

type orderResponse struct {
	RspCd  string        `json:"rsp_cd"`
	RspMsg string        `json:"rsp_msg"`
	Block  orderOutBlock `json:"CSPAT00600OutBlock2"`
	// Block1 covers the alternate single-object response shape some TRs
	// use instead of nesting the order id under OutBlock2.
	Block1 *orderOutBlock `json:"CSPAT00600OutBlock1,omitempty"`
}

func (r *orderResponse) envelope() venueEnvelope {
	return venueEnvelope{RspCd: r.RspCd, RspMsg: r.RspMsg}
}

func (r *orderResponse) orderID() string {
	if r.Block.OrderNo != "" {
		return r.Block.OrderNo
	}
	if r.Block1 != nil {
		return r.Block1.OrderNo
	}
	return ""
}

type accountOutBlock struct {
	Balance         string `json:"Dps"`
	Equity          string `json:"EvalAmt"`
	MarginUsed      string `json:"MgnAmt"`
	MarginAvailable string `json:"MgnPosblAmt"`
}

type accountResponse struct {
	RspCd  string          `json:"rsp_cd"`
	RspMsg string          `json:"rsp_msg"`
	Block  accountOutBlock `json:"CSPAQ12300OutBlock1"`
}

func (r *accountResponse) envelope() venueEnvelope {
	return venueEnvelope{RspCd: r.RspCd, RspMsg: r.RspMsg}
}

type positionOutBlock struct {
	Symbol        string `json:"IsuNo"`
	Quantity      string `json:"BalQty"`
	AvgPrice      string `json:"PchsAvrPrc"`
	CurrentPrice  string `json:"CurPrc"`
}

type positionsResponse struct {
	RspCd  string             `json:"rsp_cd"`
	RspMsg string             `json:"rsp_msg"`
	Blocks []positionOutBlock `json:"CSPAQ12300OutBlock2"`
}

func (r *positionsResponse) envelope() venueEnvelope {
	return venueEnvelope{RspCd: r.RspCd, RspMsg: r.RspMsg}
}

type orderHistoryOutBlock struct {
	OrderNo        string `json:"OrdNo"`
	Symbol         string `json:"IsuNo"`
	Side           string `json:"BnsTpCode"` // "1" sell, "2" buy (venue convention)
	OrderType      string `json:"OrdTpCode"`
	Quantity       string `json:"OrdQty"`
	Price          string `json:"OrdPrc"`
	FilledQuantity string `json:"ExecQty"`
	ExecutedFlag   string `json:"UnercqQtyCnd"` // venue's executed/unexecuted split
	Time           string `json:"OrdTime"`
}

type orderHistoryResponse struct {
	RspCd  string                 `json:"rsp_cd"`
	RspMsg string                 `json:"rsp_msg"`
	Blocks []orderHistoryOutBlock `json:"CSPAQ13700OutBlock1"`
}

func (r *orderHistoryResponse) envelope() venueEnvelope {
	return venueEnvelope{RspCd: r.RspCd, RspMsg: r.RspMsg}
}

type timeResponse struct {
	RspCd  string `json:"rsp_cd"`
	RspMsg string `json:"rsp_msg"`
	Block  struct {
		Time string `json:"CurTime"` // HHMMSS
	} `json:"t0167OutBlock"`
}

func (r *timeResponse) envelope() venueEnvelope {
	return venueEnvelope{RspCd: r.RspCd, RspMsg: r.RspMsg}
}

// wsFrame is the envelope for every WebSocket message: header carries the
// transaction code, body carries the TR-specific payload.
type wsFrame struct {
	Header wsHeader        `json:"header"`
	Body   json.RawMessage `json:"body"`
}

type wsHeader struct {
	TrCd string `json:"tr_cd"`
}
