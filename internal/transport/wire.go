package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// DefaultTargetPrefix is prepended to book ids on the wire ("BOOK-42").
const DefaultTargetPrefix = "BOOK-"

// WireFormat builds the gateway request payload from an envelope.
type WireFormat struct {
	TargetPrefix     string
	IncludeSignature bool // also send request_id, ts, nonce and hmac
}

// Encode renders env as the UTF-8 JSON text message the gateway expects:
//
//	{"operation":"renovacion","book_code":"BOOK-42","user_id":7}
func (f WireFormat) Encode(env types.RequestEnvelope) ([]byte, error) {
	prefix := f.TargetPrefix
	if prefix == "" {
		prefix = DefaultTargetPrefix
	}

	payload := map[string]any{
		"operation": strings.ToLower(strings.TrimSpace(string(env.Operation))),
		"book_code": fmt.Sprintf("%s%d", prefix, env.TargetID),
		"user_id":   env.SubjectID,
	}
	if f.IncludeSignature {
		payload["request_id"] = env.RequestID
		payload["ts"] = env.IssuedAt
		payload["nonce"] = env.Nonce
		payload["hmac"] = env.MAC
	}
	return json.Marshal(payload)
}

// successSynonyms are accepted case-insensitively as a success status.
var successSynonyms = map[string]bool{
	"OK":      true,
	"OKAY":    true,
	"SUCCESS": true,
}

// InterpretReply maps a gateway reply to an outcome.
//
// Precedence: a non-empty "status" field decides alone; otherwise the
// "estado" field is consulted. Both are matched case-insensitively against
// the success synonyms. Missing status, any other value, and unparsable
// replies are ERROR.
func InterpretReply(raw []byte) types.Outcome {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil || resp == nil {
		return types.OutcomeError
	}

	if v, ok := resp["status"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return types.OutcomeError
		}
		if strings.TrimSpace(s) != "" {
			return outcomeOf(s)
		}
	}
	if v, ok := resp["estado"].(string); ok {
		return outcomeOf(v)
	}
	return types.OutcomeError
}

func outcomeOf(s string) types.Outcome {
	if successSynonyms[strings.ToUpper(strings.TrimSpace(s))] {
		return types.OutcomeOK
	}
	return types.OutcomeError
}
