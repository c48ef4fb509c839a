package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"Pedigree/internal/keys"
	"Pedigree/internal/ledger"
)

func label(t *testing.T, s string) ledger.Label {
	t.Helper()

	l, err := ledger.ParseLabel(s)
	require.NoError(t, err)

	return l
}

func TestKindNames(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		require.NoError(t, err)
		require.Equal(t, k, got)
	}

	_, err := ParseKind("mint")
	require.Error(t, err)
}

func TestSignedCommandVerifies(t *testing.T) {
	priv, err := keys.Generate()
	require.NoError(t, err)

	cmd := NewSigned(priv, 7, Create(label(t, "tom")))
	require.Equal(t, OriginSigned, cmd.Origin.Kind)
	require.Equal(t, keys.AccountOf(priv), cmd.Origin.Account)
	require.True(t, cmd.VerifySignature())

	// Any change to the signed fields invalidates the signature.
	tampered := cmd
	tampered.Nonce = 8
	require.False(t, tampered.VerifySignature())

	tampered = cmd
	tampered.Call = Create(label(t, "jerry"))
	require.False(t, tampered.VerifySignature())
}

func TestUnsignedNeverVerifies(t *testing.T) {
	cmd := NewUnsigned(List(1))
	require.False(t, cmd.VerifySignature())
}

func TestHashCoversSignature(t *testing.T) {
	priv, _ := keys.Generate()
	cmd := NewSigned(priv, 0, List(3))

	other := cmd
	other.Signature = append([]byte(nil), cmd.Signature...)
	other.Signature[0] ^= 0xFF

	require.NotEqual(t, cmd.Hash(), other.Hash())
	require.Equal(t, cmd.SigningHash(), other.SigningHash())
}

// TestCallEncodingDistinct verifies different calls never share signing bytes.
func TestCallEncodingDistinct(t *testing.T) {
	calls := []Call{
		Create(label(t, "a")),
		Breed(0, 1, label(t, "a")),
		Breed(1, 0, label(t, "a")),
		Transfer(ledger.AccountID{1}, 0),
		List(0),
		Purchase(0),
	}

	seen := make(map[string]int)
	for i, c := range calls {
		enc := string(c.Encode())
		if j, dup := seen[enc]; dup {
			t.Fatalf("calls %d and %d encode identically", j, i)
		}
		seen[enc] = i
	}
}

func TestJSONSigned(t *testing.T) {
	priv, _ := keys.Generate()
	cmd := NewSigned(priv, 2, Breed(4, 9, label(t, "kit")))

	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var got Command
	require.NoError(t, json.Unmarshal(data, &got))

	require.Equal(t, cmd.Origin, got.Origin)
	require.Equal(t, cmd.Call, got.Call)
	require.True(t, got.VerifySignature())
}

func TestJSONUnsignedOracle(t *testing.T) {
	bls, err := keys.GenerateBLSKey()
	require.NoError(t, err)

	p := OraclePayload{Price: []byte("64000.10"), Public: bls.PublicKeyBytes()}
	cmd := NewUnsigned(SubmitOraclePayload(p, bls.Sign(p.SigningBytes())))

	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var got Command
	require.NoError(t, json.Unmarshal(data, &got))

	require.Equal(t, OriginNone, got.Origin.Kind)
	require.NotNil(t, got.Call.Payload)
	require.Equal(t, p.Price, got.Call.Payload.Price)
	require.True(t, keys.Verify(got.Call.PayloadSignature, got.Call.Payload.SigningBytes(), got.Call.Payload.Public))
}

func TestJSONRejectsMissingArguments(t *testing.T) {
	cases := map[string]string{
		"unknown kind":    `{"call":{"kind":"mint"}}`,
		"breed parents":   `{"call":{"kind":"breed","label":"x","parents":[1]}}`,
		"long label":      `{"call":{"kind":"create","label":"123456789"}}`,
		"bad recipient":   `{"call":{"kind":"transfer","recipient":"zz","id":1}}`,
		"missing payload": `{"call":{"kind":"submit_oracle_payload"}}`,
		"bad sender":      `{"sender":"abcd","call":{"kind":"list","id":1}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var cmd Command
			require.Error(t, json.Unmarshal([]byte(body), &cmd))
		})
	}
}

func TestPayloadSigningBytesLayout(t *testing.T) {
	p := OraclePayload{Price: []byte("1.5"), Public: []byte{0xAA}}

	want := []byte{3, 0, 0, 0, '1', '.', '5', 1, 0, 0, 0, 0xAA}
	require.Equal(t, want, p.SigningBytes())
}
