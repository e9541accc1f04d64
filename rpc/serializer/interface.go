package serializer

import (
	"fmt"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"strings"
)

// ISampleSerializer is the interface for all Sample Serializers
type ISampleSerializer interface {
	// Serialize serializes a Sample into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(sample common.Sample) ([]byte, error)
	// Deserialize deserializes a byte array into a Sample
	// It takes a byte array and a pointer to a Sample as parameters.
	// On error the sample is left untouched and the error matches common.ErrMalformed
	Deserialize(b []byte, sample *common.Sample) error
	// Name returns the short name of the encoding (proto, json, gob)
	Name() string
}

// --------------------------------------------------------------------------
// Serializer Factory Method
// --------------------------------------------------------------------------

// FromName returns the serializer registered under the given name
func FromName(name string) (ISampleSerializer, error) {
	switch strings.ToLower(name) {
	case "proto", "protobuf", "":
		return NewProtoSerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q. must be one of proto, json, gob", name)
	}
}
