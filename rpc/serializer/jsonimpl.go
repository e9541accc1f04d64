package serializer

import (
	"encoding/json"
	"github.com/ValentinKolb/imuipc/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() ISampleSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the ISampleSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISampleSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(sample common.Sample) ([]byte, error) {
	return json.Marshal(sample)
}

func (j jsonSerializerImpl) Deserialize(b []byte, sample *common.Sample) error {
	var decoded common.Sample
	if err := json.Unmarshal(b, &decoded); err != nil {
		return common.NewMalformedError(j.Name(), "invalid json document", err)
	}
	*sample = decoded
	return nil
}

func (j jsonSerializerImpl) Name() string {
	return "json"
}
