package envelope

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestCodec(now time.Time) *Codec {
	return NewCodec([]byte("demo-key"), nil, WithClock(func() time.Time { return now }))
}

func TestMakeRequestRoundTrip(t *testing.T) {
	codec := newTestCodec(fixedNow)

	env, err := codec.MakeRequest(types.OpRenewal, 42, 7)
	require.NoError(t, err)

	assert.Len(t, env.RequestID, 32)
	assert.Len(t, env.Nonce, 16)
	assert.Len(t, env.MAC, sha256HexLen)
	assert.Equal(t, fixedNow.Unix(), env.IssuedAt)
	assert.True(t, codec.VerifyEnvelope(env, DefaultFreshnessWindow))

	raw, err := Encode(env)
	require.NoError(t, err)
	assert.True(t, codec.Verify(raw, DefaultFreshnessWindow))
}

const sha256HexLen = 64

func TestMakeRequestInvalidOperation(t *testing.T) {
	codec := NewCodec([]byte("k"), []types.Operation{types.OpRenewal})

	_, err := codec.MakeRequest(types.OpLoan, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestRequestIDsAreUnique(t *testing.T) {
	codec := newTestCodec(fixedNow)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		env, err := codec.MakeRequest(types.OpReturn, i, i)
		require.NoError(t, err)
		assert.False(t, seen[env.RequestID], "duplicate id %s", env.RequestID)
		seen[env.RequestID] = true
	}
}

func TestVerifyRejectsMutatedField(t *testing.T) {
	codec := newTestCodec(fixedNow)
	env, err := codec.MakeRequest(types.OpRenewal, 10, 20)
	require.NoError(t, err)

	mutations := map[string]func(e *types.RequestEnvelope){
		"request_id": func(e *types.RequestEnvelope) { e.RequestID = "other" },
		"tipo":       func(e *types.RequestEnvelope) { e.Operation = types.OpReturn },
		"book_id":    func(e *types.RequestEnvelope) { e.TargetID++ },
		"user_id":    func(e *types.RequestEnvelope) { e.SubjectID++ },
		"ts":         func(e *types.RequestEnvelope) { e.IssuedAt++ },
		"nonce":      func(e *types.RequestEnvelope) { e.Nonce = "00" },
		"hmac":       func(e *types.RequestEnvelope) { e.MAC = strings.Repeat("0", sha256HexLen) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tampered := env
			mutate(&tampered)
			assert.False(t, codec.VerifyEnvelope(tampered, DefaultFreshnessWindow))
		})
	}
}

func TestVerifyFreshnessWindow(t *testing.T) {
	signer := newTestCodec(fixedNow)
	env, err := signer.MakeRequest(types.OpRenewal, 1, 1)
	require.NoError(t, err)

	inWindow := newTestCodec(fixedNow.Add(60 * time.Second))
	assert.True(t, inWindow.VerifyEnvelope(env, 60*time.Second))

	late := newTestCodec(fixedNow.Add(61 * time.Second))
	assert.False(t, late.VerifyEnvelope(env, 60*time.Second))

	early := newTestCodec(fixedNow.Add(-61 * time.Second))
	assert.False(t, early.VerifyEnvelope(env, 60*time.Second))
}

func TestVerifyRejectsFarOffTimestamps(t *testing.T) {
	codec := newTestCodec(fixedNow)
	now := fixedNow.Unix()

	for _, ts := range []int64{
		now + 9_300_000_000,
		now - 9_300_000_000,
		math.MaxInt64,
		math.MinInt64,
	} {
		env, err := codec.MakeRequest(types.OpRenewal, 1, 1)
		require.NoError(t, err)
		env.IssuedAt = ts
		env = codec.Attach(env)

		assert.False(t, codec.VerifyEnvelope(env, 60*time.Second), "ts=%d", ts)
		raw, err := Encode(env)
		require.NoError(t, err)
		assert.False(t, codec.Verify(raw, 60*time.Second), "ts=%d", ts)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	env, err := newTestCodec(fixedNow).MakeRequest(types.OpRenewal, 1, 1)
	require.NoError(t, err)

	other := NewCodec([]byte("another-key"), nil, WithClock(func() time.Time { return fixedNow }))
	assert.False(t, other.VerifyEnvelope(env, DefaultFreshnessWindow))
}

func TestVerifyMalformedInputNeverPanics(t *testing.T) {
	codec := newTestCodec(fixedNow)
	inputs := []string{
		``,
		`null`,
		`[]`,
		`{"ts":"abc","hmac":"x"}`,
		`{"ts":1700000000}`,
		`{"ts":1700000000,"hmac":42}`,
		`{"ts":1.5,"hmac":"aa"}`,
		`{not json`,
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			assert.False(t, codec.Verify([]byte(in), DefaultFreshnessWindow), "input %q", in)
		})
	}
}

func TestSignIsOrderIndependent(t *testing.T) {
	codec := newTestCodec(fixedNow)

	a := map[string]any{"request_id": "r1", "tipo": "RENOVACION", "book_id": 3, "user_id": 4, "ts": int64(5), "nonce": "n"}
	b := map[string]any{}
	for _, k := range []string{"nonce", "ts", "user_id", "book_id", "tipo", "request_id"} {
		b[k] = a[k]
	}
	b["hmac"] = "ignored"

	assert.Equal(t, codec.Sign(a), codec.Sign(b))
}

func TestCanonicalEncodingIsCompactAndSorted(t *testing.T) {
	raw, err := canonical(map[string]any{"b": 1, "a": "x", "hmac": "drop"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(raw))
}

func TestVerifyRawMatchesTyped(t *testing.T) {
	codec := newTestCodec(fixedNow)
	env, err := codec.MakeRequest(types.OpLoan, 999, 100)
	require.NoError(t, err)

	raw, err := json.Marshal(env.Fields())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	m["hmac"] = env.MAC
	withMAC, err := json.Marshal(m)
	require.NoError(t, err)

	assert.True(t, codec.Verify(withMAC, DefaultFreshnessWindow))
}

func TestDecode(t *testing.T) {
	codec := newTestCodec(fixedNow)
	env, err := codec.MakeRequest(types.OpReturn, 5, 6)
	require.NoError(t, err)
	raw, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	cases := []string{
		`{}`,
		`{"request_id":"r","tipo":"RENOVACION","book_id":"five","user_id":1,"ts":1,"nonce":"n","hmac":"h"}`,
		`{"request_id":"r","tipo":"RENOVACION","book_id":5,"user_id":1,"nonce":"n","hmac":"h"}`,
		`not json`,
	}
	for _, c := range cases {
		_, err := Decode([]byte(c))
		assert.ErrorIs(t, err, ErrMalformedEnvelope, "input %q", c)
	}
}
