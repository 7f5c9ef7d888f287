package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// DecodeBandRecord parses a band log entry. The entry must be a JSON object
// with a timestamp or datetime; "<band>_bid" and "<band>_ask" fields are
// optional numbers.
func DecodeBandRecord(raw []byte) (domain.BandRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.BandRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	if fields == nil {
		return domain.BandRecord{}, fmt.Errorf("%w: not an object", domain.ErrMalformedRecord)
	}

	rec := domain.BandRecord{Volumes: make(map[string]domain.BandVolume)}
	tsRaw, hasTS := fields["timestamp"]
	dtRaw, hasDT := fields["datetime"]
	if !hasTS && !hasDT {
		return domain.BandRecord{}, fmt.Errorf("%w: missing timestamp and datetime", domain.ErrMalformedRecord)
	}
	if hasTS {
		var n json.Number
		if err := json.Unmarshal(tsRaw, &n); err != nil {
			return domain.BandRecord{}, fmt.Errorf("%w: timestamp: %v", domain.ErrMalformedRecord, err)
		}
		f, err := n.Float64()
		if err != nil {
			return domain.BandRecord{}, fmt.Errorf("%w: timestamp: %v", domain.ErrMalformedRecord, err)
		}
		rec.Timestamp = f
	}
	if hasDT {
		if err := json.Unmarshal(dtRaw, &rec.Datetime); err != nil {
			return domain.BandRecord{}, fmt.Errorf("%w: datetime: %v", domain.ErrMalformedRecord, err)
		}
	}

	for _, band := range domain.Bands {
		bid, okBid, err := optionalNumber(fields, band+"_bid")
		if err != nil {
			return domain.BandRecord{}, err
		}
		ask, okAsk, err := optionalNumber(fields, band+"_ask")
		if err != nil {
			return domain.BandRecord{}, err
		}
		if okBid || okAsk {
			rec.Volumes[band] = domain.BandVolume{Band: band, Bid: bid, Ask: ask}
		}
	}
	return rec, nil
}

func optionalNumber(fields map[string]json.RawMessage, key string) (float64, bool, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return 0, false, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, key, err)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, key, err)
	}
	return f, true, nil
}

type rawDepth struct {
	B *[][]json.RawMessage `json:"b"`
	A *[][]json.RawMessage `json:"a"`
}

// DecodeDepthDiff parses a depth log entry of the form
// {"b":[[price, qty], ...], "a":[[price, qty], ...]}. Prices and quantities
// may be JSON strings or numbers; prices keep their exact text.
func DecodeDepthDiff(raw []byte) (domain.DepthDiff, error) {
	var d rawDepth
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.DepthDiff{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	if d.B == nil && d.A == nil {
		return domain.DepthDiff{}, fmt.Errorf("%w: missing b and a", domain.ErrMalformedRecord)
	}

	var out domain.DepthDiff
	var err error
	if d.B != nil {
		if out.Bids, err = decodeLevels(*d.B); err != nil {
			return domain.DepthDiff{}, fmt.Errorf("b: %w", err)
		}
	}
	if d.A != nil {
		if out.Asks, err = decodeLevels(*d.A); err != nil {
			return domain.DepthDiff{}, fmt.Errorf("a: %w", err)
		}
	}
	return out, nil
}

func decodeLevels(rows [][]json.RawMessage) ([]domain.LevelUpdate, error) {
	out := make([]domain.LevelUpdate, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: level %d has %d fields", domain.ErrMalformedRecord, i, len(row))
		}
		var price, qty json.Number
		if err := json.Unmarshal(row[0], &price); err != nil || price == "" {
			return nil, fmt.Errorf("%w: level %d price %s", domain.ErrMalformedRecord, i, row[0])
		}
		if err := json.Unmarshal(row[1], &qty); err != nil {
			return nil, fmt.Errorf("%w: level %d quantity %s", domain.ErrMalformedRecord, i, row[1])
		}
		q, err := strconv.ParseFloat(qty.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: level %d quantity: %v", domain.ErrMalformedRecord, i, err)
		}
		out = append(out, domain.LevelUpdate{Price: price.String(), Quantity: q})
	}
	return out, nil
}
