package serializer

import (
	"bytes"
	"encoding/gob"
	"github.com/ValentinKolb/imuipc/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() ISampleSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the ISampleSerializer interface using gob encoding.
// Every frame carries its own type description since the stream has no shared decoder state.
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISampleSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(sample common.Sample) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(sample); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, sample *common.Sample) error {
	var decoded common.Sample
	dec := gob.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&decoded); err != nil {
		return common.NewMalformedError(g.Name(), "invalid gob stream", err)
	}
	*sample = decoded
	return nil
}

func (g gobSerializerImpl) Name() string {
	return "gob"
}
