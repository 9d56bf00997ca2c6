package store

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/triagemap/internal/model"
)

// caseRecord is one row of a case import CSV.
type caseRecord struct {
	DiseaseID     int     `csv:"disease_id"`
	SeverityLevel int     `csv:"severity_level"`
	Location      string  `csv:"location"`
	Confidence    float64 `csv:"confidence,omitempty"`
}

// ImportCases reads a CSV with a disease_id,severity_level,location[,confidence]
// header and inserts every row in one batch. Any invalid row aborts the import.
func ImportCases(ctx context.Context, s Store, r io.Reader) (int, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, eris.New("store: import: empty csv")
		}
		return 0, eris.Wrap(err, "store: import: read header")
	}

	var cases []model.Case
	for line := 2; ; line++ {
		var rec caseRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, eris.Wrapf(err, "store: import: line %d", line)
		}
		cases = append(cases, model.Case{
			DiseaseID:     rec.DiseaseID,
			SeverityLevel: model.SeverityLevel(rec.SeverityLevel),
			Location:      rec.Location,
			Confidence:    rec.Confidence,
		})
	}

	if len(cases) == 0 {
		return 0, nil
	}

	n, err := s.AddCases(ctx, cases)
	if err != nil {
		return 0, eris.Wrap(err, "store: import")
	}
	zap.L().Debug("store: imported cases", zap.Int("count", n))
	return n, nil
}
