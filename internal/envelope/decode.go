package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// wireEnvelope mirrors types.RequestEnvelope with pointer fields so that a
// missing key can be told apart from a zero value.
type wireEnvelope struct {
	RequestID *string `json:"request_id"`
	Operation *string `json:"tipo"`
	TargetID  *int    `json:"book_id"`
	SubjectID *int    `json:"user_id"`
	IssuedAt  *int64  `json:"ts"`
	Nonce     *string `json:"nonce"`
	MAC       *string `json:"hmac"`
}

// Decode parses a JSON envelope strictly. Any missing or wrong-typed field
// yields an error wrapping ErrMalformedEnvelope. It does not check the MAC.
func Decode(raw []byte) (types.RequestEnvelope, error) {
	var w wireEnvelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&w); err != nil {
		return types.RequestEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	missing := func(name string) error {
		return fmt.Errorf("%w: missing field %q", ErrMalformedEnvelope, name)
	}
	switch {
	case w.RequestID == nil || *w.RequestID == "":
		return types.RequestEnvelope{}, missing("request_id")
	case w.Operation == nil || *w.Operation == "":
		return types.RequestEnvelope{}, missing("tipo")
	case w.TargetID == nil:
		return types.RequestEnvelope{}, missing("book_id")
	case w.SubjectID == nil:
		return types.RequestEnvelope{}, missing("user_id")
	case w.IssuedAt == nil:
		return types.RequestEnvelope{}, missing("ts")
	case w.Nonce == nil:
		return types.RequestEnvelope{}, missing("nonce")
	case w.MAC == nil:
		return types.RequestEnvelope{}, missing("hmac")
	}

	return types.RequestEnvelope{
		RequestID: *w.RequestID,
		Operation: types.Operation(*w.Operation),
		TargetID:  *w.TargetID,
		SubjectID: *w.SubjectID,
		IssuedAt:  *w.IssuedAt,
		Nonce:     *w.Nonce,
		MAC:       *w.MAC,
	}, nil
}

// Encode marshals env to its JSON wire form.
func Encode(env types.RequestEnvelope) ([]byte, error) {
	return json.Marshal(env)
}
