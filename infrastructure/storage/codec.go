package storage

import (
	"chatline/contract"
	"fmt"
	"time"

	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Timestamps have no native structpb kind, so they are wrapped the way the
// document store REST representation does it: {"timestampValue": "<RFC3339>"}.
const timestampKey = "timestampValue"

const (
	envelopeSeq    = "seq"
	envelopeFields = "fields"
)

func encodeRecord(seq uint64, fields map[string]any) ([]byte, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	envelope := &structpb.Struct{Fields: map[string]*structpb.Value{
		envelopeSeq:    structpb.NewNumberValue(float64(seq)),
		envelopeFields: structpb.NewStructValue(encoded),
	}}
	return proto.Marshal(envelope)
}

func decodeRecord(id string, data []byte) (contract.Record, error) {
	var envelope structpb.Struct
	if err := proto.Unmarshal(data, &envelope); err != nil {
		return contract.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	fields := map[string]any{}
	if s := envelope.GetFields()[envelopeFields].GetStructValue(); s != nil {
		fields = decodeFields(s)
	}
	return contract.Record{
		ID:     id,
		Seq:    uint64(envelope.GetFields()[envelopeSeq].GetNumberValue()),
		Fields: fields,
	}, nil
}

func encodeFields(fields map[string]any) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		value, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out.Fields[k] = value
	}
	return out, nil
}

func encodeValue(v any) (*structpb.Value, error) {
	switch x := v.(type) {
	case *timestamppb.Timestamp:
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			timestampKey: structpb.NewStringValue(x.AsTime().UTC().Format(time.RFC3339Nano)),
		}}), nil
	case []string:
		return encodeValue(lo.Map(x, func(s string, _ int) any { return s }))
	case []any:
		list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(x))}
		for _, item := range x {
			value, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			list.Values = append(list.Values, value)
		}
		return structpb.NewListValue(list), nil
	case map[string]any:
		s, err := encodeFields(x)
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(s), nil
	default:
		return structpb.NewValue(x)
	}
}

func decodeFields(s *structpb.Struct) map[string]any {
	out := make(map[string]any, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v *structpb.Value) any {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil
	case *structpb.Value_BoolValue:
		return kind.BoolValue
	case *structpb.Value_NumberValue:
		return kind.NumberValue
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_ListValue:
		return lo.Map(kind.ListValue.GetValues(), func(item *structpb.Value, _ int) any {
			return decodeValue(item)
		})
	case *structpb.Value_StructValue:
		if ts, ok := decodeTimestamp(kind.StructValue); ok {
			return ts
		}
		return decodeFields(kind.StructValue)
	default:
		return nil
	}
}

func decodeTimestamp(s *structpb.Struct) (*timestamppb.Timestamp, bool) {
	if len(s.GetFields()) != 1 {
		return nil, false
	}
	raw, ok := s.GetFields()[timestampKey]
	if !ok {
		return nil, false
	}
	at, err := time.Parse(time.RFC3339Nano, raw.GetStringValue())
	if err != nil {
		return nil, false
	}
	return timestamppb.New(at), true
}

// resolveServerTimestamps replaces every ServerTimestamp sentinel with the commit time.
func resolveServerTimestamps(fields map[string]any, at time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch x := v.(type) {
		case map[string]any:
			out[k] = resolveServerTimestamps(x, at)
		default:
			if v == contract.ServerTimestamp {
				out[k] = timestamppb.New(at)
				continue
			}
			out[k] = v
		}
	}
	return out
}
