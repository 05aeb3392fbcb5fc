package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/risk"
)

// Output header keys.
const (
	HeaderFloodLevel = "flood_level"
	HeaderAssessedAt = "assessed_at"
)

// ErrInvalidRequest marks messages that can never be assessed.
var ErrInvalidRequest = errors.New("invalid risk request")

// Assessor computes a risk assessment for a free-text place.
type Assessor interface {
	Assess(ctx context.Context, place string) (risk.Assessment, error)
}

// RiskRequest is the JSON payload of a source message.
type RiskRequest struct {
	Location string `json:"location"`
}

// RiskReportMessage is the JSON payload published for each assessment.
type RiskReportMessage struct {
	risk.Assessment
	Query      string    `json:"query"`
	AssessedAt time.Time `json:"assessed_at"`
}

// RiskTransformer implements Transformer by running an assessment per request.
type RiskTransformer struct {
	assessor Assessor
	clock    clockwork.Clock
}

// NewTransformer creates a RiskTransformer. The clock stamps assessed_at.
func NewTransformer(assessor Assessor, clock clockwork.Clock) *RiskTransformer {
	return &RiskTransformer{
		assessor: assessor,
		clock:    clock,
	}
}

func (t *RiskTransformer) Transform(ctx context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	var req RiskRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return domain.OutputMessage{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	place := strings.TrimSpace(req.Location)
	if place == "" {
		return domain.OutputMessage{}, fmt.Errorf("%w: empty location", ErrInvalidRequest)
	}

	assessment, err := t.assessor.Assess(ctx, place)
	if err != nil {
		return domain.OutputMessage{}, fmt.Errorf("assess %q: %w", place, err)
	}

	assessedAt := t.clock.Now().UTC()
	data, err := json.Marshal(RiskReportMessage{
		Assessment: assessment,
		Query:      place,
		AssessedAt: assessedAt,
	})
	if err != nil {
		return domain.OutputMessage{}, fmt.Errorf("serialize assessment: %w", err)
	}

	key := assessment.Location.Name
	if key == "" {
		key = place
	}
	return domain.OutputMessage{
		Key:   []byte(key),
		Value: data,
		Headers: map[string]string{
			HeaderFloodLevel: string(assessment.Risks.Flood.Level),
			HeaderAssessedAt: assessedAt.Format(time.RFC3339),
		},
	}, nil
}
