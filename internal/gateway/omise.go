package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/courtbook/webhook-service/internal/model"
)

// omiseEvent is the envelope Omise posts for charge events. The charge data
// rides inside "data"; the order reference travels in the charge metadata.
type omiseEvent struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Data struct {
		ID             string            `json:"id"`
		Status         string            `json:"status"`
		Amount         int64             `json:"amount"`
		Currency       string            `json:"currency"`
		FailureCode    *string           `json:"failure_code"`
		FailureMessage *string           `json:"failure_message"`
		Metadata       map[string]string `json:"metadata"`
	} `json:"data"`
}

// OmiseAdapter reads Omise charge.complete events.
type OmiseAdapter struct{}

func (OmiseAdapter) Provider() model.Provider { return model.ProviderOmise }

func (OmiseAdapter) NotificationID(payload []byte) (string, error) {
	var ev omiseEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.ID == "" {
		return "", ErrMalformedPayload
	}
	return ev.ID, nil
}

func (OmiseAdapter) Interpret(payload []byte) (*Interpretation, error) {
	var ev omiseEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	orderNo := ev.Data.Metadata["order_no"]
	if orderNo == "" {
		return nil, fmt.Errorf("%w: missing order_no metadata", ErrMalformedPayload)
	}
	out := &Interpretation{
		OrderNo:       orderNo,
		Succeeded:     ev.Data.Status == "successful",
		TransactionID: ev.Data.ID,
	}
	if ev.Data.FailureCode != nil {
		out.FailureCode = *ev.Data.FailureCode
	}
	if ev.Data.FailureMessage != nil {
		out.FailureReason = *ev.Data.FailureMessage
	}
	resp, _ := json.Marshal(map[string]interface{}{
		"event_id":  ev.ID,
		"charge_id": ev.Data.ID,
		"status":    ev.Data.Status,
		"amount":    ev.Data.Amount,
		"currency":  ev.Data.Currency,
	})
	out.Response = string(resp)
	return out, nil
}
