package store

import (
	"encoding/json"
	"fmt"

	"github.com/nhle/climate-alerts/internal/model"
)

// decodeList parses a persisted JSON list. Syntax errors and entries that
// could not have come from a generation cycle are reported as
// ErrCorruptState.
func decodeList(data []byte) ([]model.Recommendation, error) {
	var recs []model.Recommendation
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if err := checkList(recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}
	return recs, nil
}

func encodeList(recs []model.Recommendation) ([]byte, error) {
	if recs == nil {
		recs = []model.Recommendation{}
	}
	return json.MarshalIndent(recs, "", "  ")
}

// checkList rejects entries missing the fields every recommendation has.
func checkList(recs []model.Recommendation) error {
	for i, r := range recs {
		switch {
		case r.ID == "":
			return fmt.Errorf("%w: entry %d has no id", ErrCorruptState, i)
		case r.Title == "":
			return fmt.Errorf("%w: entry %s has no title", ErrCorruptState, r.ID)
		case r.CreatedAt.IsZero():
			return fmt.Errorf("%w: entry %s has no creation time", ErrCorruptState, r.ID)
		}
	}
	return nil
}
