package document

import "github.com/vmihailenco/msgpack/v5"

// Envelope is the on-disk representation of a document: msgpack({id, data}),
// spec.md §3 and §6.
type Envelope struct {
	ID   string
	Data Value
}

type envelopeWire struct {
	ID   string `msgpack:"id"`
	Data Value  `msgpack:"data"`
}

// Marshal encodes the envelope to its on-disk msgpack bytes.
func (e Envelope) Marshal() ([]byte, error) {
	return msgpack.Marshal(envelopeWire{ID: e.ID, Data: e.Data})
}

// UnmarshalEnvelope decodes the on-disk msgpack bytes produced by Marshal.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var w envelopeWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return Envelope{}, err
	}
	return Envelope{ID: w.ID, Data: w.Data}, nil
}

// BodyWithID returns a copy of the document body with _id mirrored in per
// spec.md §3 ("On persist, the id is mirrored into the body under the
// reserved key _id").
func (e Envelope) BodyWithID() Value {
	return e.Data.WithField("_id", StringValue(e.ID))
}
