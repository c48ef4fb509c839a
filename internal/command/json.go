package command

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"Pedigree/internal/ledger"
)

// wireCommand is the JSON form of a command. An empty sender means unsigned.
type wireCommand struct {
	Sender    string   `json:"sender,omitempty"`
	Nonce     uint64   `json:"nonce"`
	Call      wireCall `json:"call"`
	Signature string   `json:"signature,omitempty"`
}

type wireCall struct {
	Kind             string       `json:"kind"`
	Label            string       `json:"label,omitempty"`
	ID               uint32       `json:"id,omitempty"`
	Parents          []uint32     `json:"parents,omitempty"`
	Recipient        string       `json:"recipient,omitempty"`
	Payload          *wirePayload `json:"payload,omitempty"`
	PayloadSignature string       `json:"payloadSignature,omitempty"`
}

type wirePayload struct {
	Price  string `json:"price"`
	Public string `json:"public"`
}

// MarshalJSON encodes the command in its wire form.
func (c Command) MarshalJSON() ([]byte, error) {
	w := wireCommand{
		Nonce: c.Nonce,
		Call:  callToWire(c.Call),
	}

	if c.Origin.Kind == OriginSigned {
		w.Sender = c.Origin.Account.String()
		w.Signature = hex.EncodeToString(c.Signature)
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes a command from its wire form, checking that the
// arguments required by the call kind are present.
func (c *Command) UnmarshalJSON(data []byte) error {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	call, err := callFromWire(w.Call)
	if err != nil {
		return err
	}

	out := Command{Origin: None(), Nonce: w.Nonce, Call: call}

	if w.Sender != "" {
		account, err := ledger.ParseAccountID(w.Sender)
		if err != nil {
			return fmt.Errorf("sender:\n%w", err)
		}

		sig, err := hex.DecodeString(w.Signature)
		if err != nil {
			return fmt.Errorf("signature:\n%w", err)
		}

		out.Origin = Signed(account)
		out.Signature = sig
	}

	*c = out

	return nil
}

func callToWire(c Call) wireCall {
	w := wireCall{Kind: c.Kind.String()}

	switch c.Kind {
	case KindCreate:
		w.Label = c.Label.String()
	case KindBreed:
		w.Label = c.Label.String()
		w.Parents = []uint32{uint32(c.ParentA), uint32(c.ParentB)}
	case KindTransfer:
		w.Recipient = c.Recipient.String()
		w.ID = uint32(c.ID)
	case KindList, KindPurchase:
		w.ID = uint32(c.ID)
	case KindSubmitOraclePayload:
		if c.Payload != nil {
			w.Payload = &wirePayload{
				Price:  string(c.Payload.Price),
				Public: hex.EncodeToString(c.Payload.Public),
			}
		}
		w.PayloadSignature = hex.EncodeToString(c.PayloadSignature)
	}

	return w
}

func callFromWire(w wireCall) (Call, error) {
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return Call{}, err
	}

	c := Call{Kind: kind, ID: ledger.AssetID(w.ID)}

	switch kind {
	case KindCreate, KindBreed:
		if c.Label, err = ledger.ParseLabel(w.Label); err != nil {
			return Call{}, err
		}

		if kind == KindBreed {
			if len(w.Parents) != 2 {
				return Call{}, fmt.Errorf("breed needs 2 parents, got %d", len(w.Parents))
			}
			c.ParentA = ledger.AssetID(w.Parents[0])
			c.ParentB = ledger.AssetID(w.Parents[1])
		}

	case KindTransfer:
		if c.Recipient, err = ledger.ParseAccountID(w.Recipient); err != nil {
			return Call{}, fmt.Errorf("recipient:\n%w", err)
		}

	case KindSubmitOraclePayload:
		if w.Payload == nil {
			return Call{}, fmt.Errorf("submit_oracle_payload needs a payload")
		}

		public, err := hex.DecodeString(w.Payload.Public)
		if err != nil {
			return Call{}, fmt.Errorf("payload public key:\n%w", err)
		}

		sig, err := hex.DecodeString(w.PayloadSignature)
		if err != nil {
			return Call{}, fmt.Errorf("payload signature:\n%w", err)
		}

		c.Payload = &OraclePayload{Price: []byte(w.Payload.Price), Public: public}
		c.PayloadSignature = sig
	}

	return c, nil
}
