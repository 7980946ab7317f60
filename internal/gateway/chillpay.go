package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/courtbook/webhook-service/internal/model"
)

// chillPayNotice is ChillPay's background notification body. RespCode 0
// means the charge went through; anything else is a gateway-declared failure.
type chillPayNotice struct {
	TransactionID string `json:"TransactionId"`
	OrderNo       string `json:"OrderNo"`
	Amount        int64  `json:"Amount"`
	RespCode      int    `json:"RespCode"`
	RespDesc      string `json:"RespDesc"`
	PaymentCode   string `json:"PaymentCode"`
}

// ChillPayAdapter reads ChillPay payment notifications.
type ChillPayAdapter struct{}

func (ChillPayAdapter) Provider() model.Provider { return model.ProviderChillPay }

func (ChillPayAdapter) NotificationID(payload []byte) (string, error) {
	var n chillPayNotice
	if err := json.Unmarshal(payload, &n); err != nil || n.TransactionID == "" {
		return "", ErrMalformedPayload
	}
	return n.TransactionID, nil
}

func (ChillPayAdapter) Interpret(payload []byte) (*Interpretation, error) {
	var n chillPayNotice
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.OrderNo == "" {
		return nil, fmt.Errorf("%w: missing OrderNo", ErrMalformedPayload)
	}
	resp, _ := json.Marshal(map[string]interface{}{
		"transaction_id": n.TransactionID,
		"resp_code":      n.RespCode,
		"resp_desc":      n.RespDesc,
		"payment_code":   n.PaymentCode,
		"amount":         n.Amount,
	})
	return &Interpretation{
		OrderNo:       n.OrderNo,
		Succeeded:     n.RespCode == 0,
		TransactionID: n.TransactionID,
		FailureCode:   strconv.Itoa(n.RespCode),
		FailureReason: n.RespDesc,
		Response:      string(resp),
	}, nil
}
