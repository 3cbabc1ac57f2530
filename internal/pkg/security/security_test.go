package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayToken_RoundTrip(t *testing.T) {
	claims := GatewayClaims{
		SchoolID:    "65b0e6293e9f76a9694d84b4",
		PGKey:       "pg-key",
		OrderID:     "ORDER_100",
		OrderAmount: 2000,
		StudentInfo: GatewayStudent{Name: "Jane", ID: "S1", Email: "jane@example.com"},
		Gateway:     "PhonePe",
	}

	token, err := SignGatewayToken(claims, time.Hour, "secret")
	require.NoError(t, err)

	got, err := VerifyGatewayToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_100", got.OrderID)
	assert.Equal(t, 2000.0, got.OrderAmount)
	assert.Equal(t, "S1", got.StudentInfo.ID)
	assert.Equal(t, "pg-key", got.PGKey)
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt.Time, 5*time.Second)
}

func TestGatewayToken_Rejects(t *testing.T) {
	_, err := SignGatewayToken(GatewayClaims{}, time.Hour, "")
	assert.Error(t, err)

	token, err := SignGatewayToken(GatewayClaims{OrderID: "X"}, time.Hour, "secret")
	require.NoError(t, err)
	_, err = VerifyGatewayToken(token, "other")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	expired, err := SignGatewayToken(GatewayClaims{OrderID: "X"}, -time.Minute, "secret")
	require.NoError(t, err)
	_, err = VerifyGatewayToken(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"status":200}`)
	sig := SignWebhookPayload(body, "whsec")

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{"valid", body, sig, "whsec", true},
		{"valid with prefix", body, "sha256=" + sig, "whsec", true},
		{"wrong secret", body, sig, "other", false},
		{"tampered body", []byte(`{"status":201}`), sig, "whsec", false},
		{"not hex", body, "zz", "whsec", false},
		{"empty signature", body, "", "whsec", false},
		{"no secret", body, sig, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyWebhookSignature(tt.body, tt.signature, tt.secret))
		})
	}
}
