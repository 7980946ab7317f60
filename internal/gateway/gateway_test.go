package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courtbook/webhook-service/internal/model"
)

func TestAll_CoversEveryProvider(t *testing.T) {
	seen := map[model.Provider]bool{}
	for _, a := range All() {
		seen[a.Provider()] = true
	}
	assert.True(t, seen[model.ProviderOmise])
	assert.True(t, seen[model.ProviderChillPay])
	assert.True(t, seen[model.Provider2C2P])
}

func TestOmiseAdapter_Interpret(t *testing.T) {
	a := OmiseAdapter{}

	payload := []byte(`{"id":"evnt_9","key":"charge.complete","data":{"id":"chrg_9","status":"successful","amount":100000,"currency":"thb","metadata":{"order_no":"ORD-9"}}}`)
	id, err := a.NotificationID(payload)
	assert.NoError(t, err)
	assert.Equal(t, "evnt_9", id)

	got, err := a.Interpret(payload)
	assert.NoError(t, err)
	assert.Equal(t, "ORD-9", got.OrderNo)
	assert.True(t, got.Succeeded)
	assert.Equal(t, "chrg_9", got.TransactionID)
	assert.Contains(t, got.Response, "chrg_9")

	failed := []byte(`{"id":"evnt_10","data":{"id":"chrg_10","status":"failed","failure_code":"insufficient_fund","failure_message":"insufficient funds","metadata":{"order_no":"ORD-10"}}}`)
	got, err = a.Interpret(failed)
	assert.NoError(t, err)
	assert.False(t, got.Succeeded)
	assert.Equal(t, "insufficient_fund", got.FailureCode)
	assert.Equal(t, "insufficient funds", got.FailureReason)

	_, err = a.Interpret([]byte(`{"id":"evnt_11","data":{"id":"chrg_11","status":"successful"}}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = a.Interpret([]byte(`{{`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestChillPayAdapter_Interpret(t *testing.T) {
	a := ChillPayAdapter{}

	payload := []byte(`{"TransactionId":"CP-77","OrderNo":"ORD-77","Amount":150000,"RespCode":0,"RespDesc":"success","PaymentCode":"CC"}`)
	id, err := a.NotificationID(payload)
	assert.NoError(t, err)
	assert.Equal(t, "CP-77", id)

	got, err := a.Interpret(payload)
	assert.NoError(t, err)
	assert.Equal(t, "ORD-77", got.OrderNo)
	assert.True(t, got.Succeeded)
	assert.Equal(t, "CP-77", got.TransactionID)

	declined := []byte(`{"TransactionId":"CP-78","OrderNo":"ORD-78","RespCode":1005,"RespDesc":"card declined"}`)
	got, err = a.Interpret(declined)
	assert.NoError(t, err)
	assert.False(t, got.Succeeded)
	assert.Equal(t, "1005", got.FailureCode)
	assert.Equal(t, "card declined", got.FailureReason)

	_, err = a.Interpret([]byte(`{"TransactionId":"CP-79","RespCode":0}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestTwoCTwoPAdapter_Interpret(t *testing.T) {
	a := TwoCTwoPAdapter{}

	payload := []byte(`{"merchant_id":"M001","order_id":"ORD-55","transaction_ref":"T-55","payment_status":"000","amount":"0000100000","payment_channel":"CC"}`)
	id, err := a.NotificationID(payload)
	assert.NoError(t, err)
	assert.Equal(t, "T-55", id)

	got, err := a.Interpret(payload)
	assert.NoError(t, err)
	assert.Equal(t, "ORD-55", got.OrderNo)
	assert.True(t, got.Succeeded)
	assert.Equal(t, "T-55", got.TransactionID)

	declined := []byte(`{"order_id":"ORD-56","transaction_ref":"T-56","payment_status":"999","channel_response_desc":"do not honour"}`)
	got, err = a.Interpret(declined)
	assert.NoError(t, err)
	assert.False(t, got.Succeeded)
	assert.Equal(t, "999", got.FailureCode)
	assert.Equal(t, "do not honour", got.FailureReason)

	_, err = a.NotificationID([]byte(`{"order_id":"ORD-57"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
