package domain

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// DefaultTimestampLayout matches the en-US locale rendering of a date and time.
const DefaultTimestampLayout = "1/2/2006, 3:04:05 PM"

// Normalizer turns store timestamps into display strings and sortable values.
// It is never called with an absent timestamp.
type Normalizer struct {
	Layout   string
	Location *time.Location
}

func NewNormalizer(layout string, location *time.Location) Normalizer {
	if layout == "" {
		layout = DefaultTimestampLayout
	}
	if location == nil {
		location = time.Local
	}
	return Normalizer{Layout: layout, Location: location}
}

func (n Normalizer) Format(ts *timestamppb.Timestamp) string {
	return ts.AsTime().In(n.Location).Format(n.Layout)
}

func (n Normalizer) SortKey(ts *timestamppb.Timestamp) int64 {
	return ts.AsTime().UnixNano()
}
