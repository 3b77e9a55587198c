package scoring

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ScoreRequest is the wire form of a remote Score call, as declared in
// pb/scoring.proto.
//
//	message ScoreRequest {
//	  string model = 1;
//	  repeated float samples = 2;
//	  float min_prob = 3;
//	  float temp_w = 4;
//	  float temp_b = 5;
//	  bool use_log = 6;
//	}
type ScoreRequest struct {
	Model      string
	Samples    []float32
	MinProb    float32
	TempWeight float32
	TempBias   float32
	UseLog     bool
}

// ScoreResponse carries a row-major matrix without padding.
//
//	message ScoreResponse {
//	  uint32 rows = 1;
//	  uint32 cols = 2;
//	  repeated float scores = 3;
//	}
type ScoreResponse struct {
	Rows   uint32
	Cols   uint32
	Scores []float32
}

type wireMessage interface {
	marshal() []byte
	unmarshal([]byte) error
}

func appendFloats(b []byte, num protowire.Number, v []float32) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(v)))
	for _, x := range v {
		b = protowire.AppendFixed32(b, math.Float32bits(x))
	}
	return b
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// consumeFloats accepts both packed and unpacked encodings.
func consumeFloats(b []byte, typ protowire.Type, dst []float32) ([]float32, int) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return dst, n
		}
		return append(dst, math.Float32frombits(v)), n
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return dst, n
		}
		if len(packed)%4 != 0 {
			return dst, -1
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed32(packed)
			dst = append(dst, math.Float32frombits(v))
			packed = packed[m:]
		}
		return dst, n
	}
	return dst, -1
}

func consumeFloat(b []byte, typ protowire.Type) (float32, int) {
	if typ != protowire.Fixed32Type {
		return 0, -1
	}
	v, n := protowire.ConsumeFixed32(b)
	return math.Float32frombits(v), n
}

func (r *ScoreRequest) marshal() []byte {
	var b []byte
	if r.Model != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, r.Model)
	}
	b = appendFloats(b, 2, r.Samples)
	b = appendFloat(b, 3, r.MinProb)
	b = appendFloat(b, 4, r.TempWeight)
	b = appendFloat(b, 5, r.TempBias)
	if r.UseLog {
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func (r *ScoreRequest) unmarshal(b []byte) error {
	*r = ScoreRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			r.Model, n = protowire.ConsumeString(b)
		case num == 2:
			r.Samples, n = consumeFloats(b, typ, r.Samples)
		case num == 3:
			r.MinProb, n = consumeFloat(b, typ)
		case num == 4:
			r.TempWeight, n = consumeFloat(b, typ)
		case num == 5:
			r.TempBias, n = consumeFloat(b, typ)
		case num == 6 && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.UseLog = v != 0
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("score request field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func (r *ScoreResponse) marshal() []byte {
	var b []byte
	if r.Rows != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Rows))
	}
	if r.Cols != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Cols))
	}
	return appendFloats(b, 3, r.Scores)
}

func (r *ScoreResponse) unmarshal(b []byte) error {
	*r = ScoreResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var v uint64
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			r.Rows = uint32(v)
		case num == 2 && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			r.Cols = uint32(v)
		case num == 3:
			r.Scores, n = consumeFloats(b, typ, r.Scores)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("score response field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

// codecName is the gRPC content subtype carrying these messages.
const codecName = "nanocall"

type codec struct{}

func (codec) Name() string { return codecName }

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("nanocall codec: cannot marshal %T", v)
	}
	return m.marshal(), nil
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("nanocall codec: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data)
}
