package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"TaskStream/internal/domain/models"
)

type fingerprintPoint struct {
	T    string            `json:"t"`
	V    float64           `json:"v"`
	Tags map[string]string `json:"g,omitempty"`
}

type fingerprintDoc struct {
	Op         string             `json:"op"`
	MetricType string             `json:"m"`
	Horizon    models.HorizonKind `json:"h"`
	Days       int                `json:"d"`
	Level      float64            `json:"l"`
	Params     map[string]any     `json:"p,omitempty"`
	Points     []fingerprintPoint `json:"s"`
}

// Fingerprint derives a cache key from series content and call parameters.
// Equal content yields equal keys regardless of which series object carries it.
func Fingerprint(op string, s *models.MetricSeries, horizon models.HorizonKind, days int, level float64, params map[string]any) (string, error) {
	doc := fingerprintDoc{
		Op:         op,
		MetricType: s.MetricType(),
		Horizon:    horizon,
		Days:       days,
		Level:      level,
		Params:     params,
		Points:     make([]fingerprintPoint, 0, s.Len()),
	}
	for _, r := range s.All() {
		doc.Points = append(doc.Points, fingerprintPoint{T: r.Timestamp.UTC().Format(time.RFC3339Nano), V: r.Value, Tags: r.Tags})
	}
	h := sha256.New()
	// encoding/json writes map keys sorted, so the byte stream is canonical.
	if err := json.NewEncoder(h).Encode(doc); err != nil {
		return "", err
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
