package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_Deterministic(t *testing.T) {
	body := []byte(`{"job_id":"BANK-001"}`)
	assert.Equal(t, Sign(body, "secret"), Sign(body, "secret"))
}

func TestSign_DiffersByBodyOrSecret(t *testing.T) {
	body := []byte(`{"a":1}`)
	assert.NotEqual(t, Sign(body, "s1"), Sign(body, "s2"))
	assert.NotEqual(t, Sign(body, "s1"), Sign([]byte(`{"a":2}`), "s1"))
}

func TestVerifyInboundSignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := Sign(body, "ts")

	assert.NoError(t, VerifyInboundSignature(body, "ts", sig))

	err := VerifyInboundSignature(body, "ts", "")
	assert.Error(t, err)

	err = VerifyInboundSignature(body, "wrong-secret", sig)
	assert.Error(t, err)

	tampered := append([]byte(nil), body...)
	tampered[0] = '['
	err = VerifyInboundSignature(tampered, "ts", sig)
	assert.Error(t, err)
}

func TestVerifySignature_WebhookCrossTenantFails(t *testing.T) {
	body := []byte(`{"event":"memo.generated"}`)
	sigA := Sign(body, "tenant-a-webhook-secret")

	assert.True(t, VerifySignature(body, "tenant-a-webhook-secret", sigA))
	assert.False(t, VerifySignature(body, "tenant-b-webhook-secret", sigA))
}
