package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/courtbook/webhook-service/internal/model"
)

// twoCTwoPNotice is the 2C2P backend notification. payment_status "000" is
// the success code; everything else carries a decline reason.
type twoCTwoPNotice struct {
	MerchantID          string `json:"merchant_id"`
	OrderID             string `json:"order_id"`
	TransactionRef      string `json:"transaction_ref"`
	PaymentStatus       string `json:"payment_status"`
	ChannelResponseDesc string `json:"channel_response_desc"`
	Amount              string `json:"amount"`
	PaymentChannel      string `json:"payment_channel"`
}

// TwoCTwoPAdapter reads 2C2P payment notifications.
type TwoCTwoPAdapter struct{}

func (TwoCTwoPAdapter) Provider() model.Provider { return model.Provider2C2P }

func (TwoCTwoPAdapter) NotificationID(payload []byte) (string, error) {
	var n twoCTwoPNotice
	if err := json.Unmarshal(payload, &n); err != nil || n.TransactionRef == "" {
		return "", ErrMalformedPayload
	}
	return n.TransactionRef, nil
}

func (TwoCTwoPAdapter) Interpret(payload []byte) (*Interpretation, error) {
	var n twoCTwoPNotice
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order_id", ErrMalformedPayload)
	}
	resp, _ := json.Marshal(map[string]interface{}{
		"merchant_id":     n.MerchantID,
		"transaction_ref": n.TransactionRef,
		"payment_status":  n.PaymentStatus,
		"response_desc":   n.ChannelResponseDesc,
		"amount":          n.Amount,
		"channel":         n.PaymentChannel,
	})
	return &Interpretation{
		OrderNo:       n.OrderID,
		Succeeded:     n.PaymentStatus == "000",
		TransactionID: n.TransactionRef,
		FailureCode:   n.PaymentStatus,
		FailureReason: n.ChannelResponseDesc,
		Response:      string(resp),
	}, nil
}
