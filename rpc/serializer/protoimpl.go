package serializer

import (
	"fmt"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"google.golang.org/protobuf/encoding/protowire"
	"math"
)

// NewProtoSerializer creates a new serializer writing the ImuData protobuf message (see imu.proto)
func NewProtoSerializer() ISampleSerializer {
	return &protoSerializerImpl{}
}

// protoSerializerImpl implements ISampleSerializer on top of the protobuf wire format.
// It is hand written against protowire so no generated code is needed for a single message.
type protoSerializerImpl struct {
}

// Field numbers of the ImuData message
const (
	fieldXAcc          protowire.Number = 1
	fieldYAcc          protowire.Number = 2
	fieldZAcc          protowire.Number = 3
	fieldTimestampAcc  protowire.Number = 4
	fieldXGyro         protowire.Number = 5
	fieldYGyro         protowire.Number = 6
	fieldZGyro         protowire.Number = 7
	fieldTimestampGyro protowire.Number = 8
	fieldXMag          protowire.Number = 9
	fieldYMag          protowire.Number = 10
	fieldZMag          protowire.Number = 11
	fieldTimestampMag  protowire.Number = 12
)

// maxProtoSampleSize is the encoded size of a sample with all varints at their maximum length
const maxProtoSampleSize = 6*(1+4) + 3*(1+10) + 3*(1+5)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISampleSerializer)
// --------------------------------------------------------------------------

func (p protoSerializerImpl) Serialize(sample common.Sample) ([]byte, error) {
	b := make([]byte, 0, maxProtoSampleSize)

	// all fields are always written, even when zero, so a sample never encodes to an empty payload
	b = appendFloat(b, fieldXAcc, sample.Accel.X)
	b = appendFloat(b, fieldYAcc, sample.Accel.Y)
	b = appendFloat(b, fieldZAcc, sample.Accel.Z)
	b = appendUint32(b, fieldTimestampAcc, sample.TimestampAccel)

	b = appendInt32(b, fieldXGyro, sample.Gyro.X)
	b = appendInt32(b, fieldYGyro, sample.Gyro.Y)
	b = appendInt32(b, fieldZGyro, sample.Gyro.Z)
	b = appendUint32(b, fieldTimestampGyro, sample.TimestampGyro)

	b = appendFloat(b, fieldXMag, sample.Mag.X)
	b = appendFloat(b, fieldYMag, sample.Mag.Y)
	b = appendFloat(b, fieldZMag, sample.Mag.Z)
	b = appendUint32(b, fieldTimestampMag, sample.TimestampMag)

	return b, nil
}

func (p protoSerializerImpl) Deserialize(data []byte, sample *common.Sample) error {
	var decoded common.Sample

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return common.NewMalformedError(p.Name(), "invalid field tag", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldXAcc, fieldYAcc, fieldZAcc, fieldXMag, fieldYMag, fieldZMag:
			if typ != protowire.Fixed32Type {
				return p.wrongType(num, typ, protowire.Fixed32Type)
			}
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return common.NewMalformedError(p.Name(), fmt.Sprintf("field %d truncated", num), protowire.ParseError(n))
			}
			data = data[n:]
			*floatField(&decoded, num) = math.Float32frombits(v)

		case fieldTimestampAcc, fieldTimestampGyro, fieldTimestampMag, fieldXGyro, fieldYGyro, fieldZGyro:
			if typ != protowire.VarintType {
				return p.wrongType(num, typ, protowire.VarintType)
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return common.NewMalformedError(p.Name(), fmt.Sprintf("field %d truncated", num), protowire.ParseError(n))
			}
			data = data[n:]
			setVarintField(&decoded, num, v)

		default:
			// unknown field, skip it for forward compatibility
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return common.NewMalformedError(p.Name(), fmt.Sprintf("unknown field %d truncated", num), protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	*sample = decoded
	return nil
}

func (p protoSerializerImpl) Name() string {
	return "proto"
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (p protoSerializerImpl) wrongType(num protowire.Number, got, want protowire.Type) error {
	return common.NewMalformedError(p.Name(),
		fmt.Sprintf("field %d has wire type %d, expected %d", num, got, want), nil)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// appendInt32 writes a proto3 int32, negative values are sign extended to ten bytes
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// floatField returns the sample component addressed by a fixed32 field number
func floatField(s *common.Sample, num protowire.Number) *float32 {
	switch num {
	case fieldXAcc:
		return &s.Accel.X
	case fieldYAcc:
		return &s.Accel.Y
	case fieldZAcc:
		return &s.Accel.Z
	case fieldXMag:
		return &s.Mag.X
	case fieldYMag:
		return &s.Mag.Y
	default:
		return &s.Mag.Z
	}
}

// setVarintField stores a decoded varint, truncating to 32 bits like protobuf does
func setVarintField(s *common.Sample, num protowire.Number, v uint64) {
	switch num {
	case fieldTimestampAcc:
		s.TimestampAccel = uint32(v)
	case fieldTimestampGyro:
		s.TimestampGyro = uint32(v)
	case fieldTimestampMag:
		s.TimestampMag = uint32(v)
	case fieldXGyro:
		s.Gyro.X = int32(v)
	case fieldYGyro:
		s.Gyro.Y = int32(v)
	case fieldZGyro:
		s.Gyro.Z = int32(v)
	}
}
