package performance

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	sectionBShare = decimal.NewFromFloat(0.7)
	sectionCShare = decimal.NewFromFloat(0.3)
	hundred       = decimal.NewFromInt(100)
)

const (
	// MaxScore bounds ratings, KRA weights, weighted averages and raw section
	// totals.
	MaxScore    = 1000.0
	maxKRATotal = 1_000_000.0
)

// Totals is the computed score block of an appraisal.
type Totals struct {
	SectionB float64
	SectionC float64
	Overall  float64
}

// SectionBTotal is the weighted mean of the KRA weighted averages scaled to
// 70 points: round(Σ(weight×weightedAverage)/Σweight × 0.7). Without rows the
// raw stored total is returned.
func SectionBTotal(rows []KRAScore, raw *float64) float64 {
	if len(rows) == 0 {
		return valueOrZero(raw)
	}
	sumWeight := decimal.Zero
	sumWeighted := decimal.Zero
	for _, row := range rows {
		weight := decimal.NewFromFloat(valueOrZero(row.Weight))
		average := decimal.NewFromFloat(valueOrZero(row.WeightedAverage))
		sumWeight = sumWeight.Add(weight)
		sumWeighted = sumWeighted.Add(weight.Mul(average))
	}
	if !sumWeight.IsPositive() {
		return 0
	}
	return roundHalfUp(sumWeighted.Mul(sectionBShare).Div(sumWeight))
}

// SkillWeight bands a soft-skill rating into its weight.
func SkillWeight(rating float64) int {
	switch {
	case rating <= 70:
		return 1
	case rating <= 80:
		return 2
	case rating <= 90:
		return 3
	case rating <= 100:
		return 4
	case rating <= 110:
		return 5
	default:
		return 6
	}
}

// ScoreSoftSkills fills the derived weight and weighted score of each row.
// Unrated rows get zero weight.
func ScoreSoftSkills(rows []SoftSkillScore) []SoftSkillScore {
	out := make([]SoftSkillScore, len(rows))
	for i, row := range rows {
		row.Rating = Normalize(row.Rating)
		row.Weight = 0
		row.WeightedScore = 0
		if positive(row.Rating) {
			row.Weight = SkillWeight(*row.Rating)
			row.WeightedScore, _ = decimal.NewFromFloat(*row.Rating).Mul(decimal.NewFromInt(int64(row.Weight))).Float64()
		}
		out[i] = row
	}
	return out
}

// SectionCTotal is round(Σ(weight×rating)/Σweight × 0.3) over rated rows,
// falling back to the raw stored total when nothing is rated.
func SectionCTotal(rows []SoftSkillScore, raw *float64) float64 {
	sumWeight := decimal.Zero
	sumWeighted := decimal.Zero
	for _, row := range rows {
		rating := Normalize(row.Rating)
		if !positive(rating) {
			continue
		}
		weight := decimal.NewFromInt(int64(SkillWeight(*rating)))
		sumWeight = sumWeight.Add(weight)
		sumWeighted = sumWeighted.Add(weight.Mul(decimal.NewFromFloat(*rating)))
	}
	if !sumWeight.IsPositive() {
		return valueOrZero(raw)
	}
	return roundHalfUp(sumWeighted.Mul(sectionCShare).Div(sumWeight))
}

// OverallScore is round(B+C) unless a positive override is given.
func OverallScore(sectionB, sectionC float64, override *float64) float64 {
	if positive(override) {
		return *Normalize(override)
	}
	return roundHalfUp(decimal.NewFromFloat(sectionB).Add(decimal.NewFromFloat(sectionC)))
}

func ComputeTotals(a Appraisal) Totals {
	b := SectionBTotal(a.KRAScores, a.SectionBRaw)
	c := SectionCTotal(a.SoftSkills, a.SectionCRaw)
	return Totals{SectionB: b, SectionC: c, Overall: OverallScore(b, c, a.OverallOverride)}
}

// NormalizeKRA cleans numeric inputs and fills derivable values: a missing
// percent from actual/target, and a missing weighted average from the mean
// of the monthly percents.
func NormalizeKRA(rows []KRAScore) []KRAScore {
	out := make([]KRAScore, len(rows))
	for i, row := range rows {
		row.Weight = Normalize(row.Weight)
		row.Total = Normalize(row.Total)
		row.WeightedAverage = Normalize(row.WeightedAverage)

		months := make([]MonthlyScore, len(row.Monthly))
		sum := decimal.Zero
		counted := 0
		for j, month := range row.Monthly {
			month.Target = Normalize(month.Target)
			month.Actual = Normalize(month.Actual)
			month.Percent = Normalize(month.Percent)
			if month.Percent == nil && positive(month.Target) && month.Actual != nil {
				pct := roundTo(decimal.NewFromFloat(*month.Actual).Mul(hundred).Div(decimal.NewFromFloat(*month.Target)), 2)
				month.Percent = &pct
			}
			if month.Percent != nil {
				sum = sum.Add(decimal.NewFromFloat(*month.Percent))
				counted++
			}
			months[j] = month
		}
		row.Monthly = months
		if row.WeightedAverage == nil && counted > 0 {
			avg := roundTo(sum.Div(decimal.NewFromInt(int64(counted))), 2)
			row.WeightedAverage = &avg
		}
		out[i] = row
	}
	return out
}

// CheckBounds rejects normalized values the score columns cannot hold.
func CheckBounds(kra []KRAScore, skills []SoftSkillScore, sectionBRaw, sectionCRaw *float64) error {
	for i, row := range kra {
		if err := checkBound(fmt.Sprintf("kraScores[%d].weight", i), row.Weight, MaxScore); err != nil {
			return err
		}
		if err := checkBound(fmt.Sprintf("kraScores[%d].weightedAverage", i), row.WeightedAverage, MaxScore); err != nil {
			return err
		}
		if err := checkBound(fmt.Sprintf("kraScores[%d].total", i), row.Total, maxKRATotal); err != nil {
			return err
		}
	}
	for i, row := range skills {
		if err := checkBound(fmt.Sprintf("softSkills[%d].rating", i), row.Rating, MaxScore); err != nil {
			return err
		}
	}
	if err := checkBound("sectionBRaw", sectionBRaw, MaxScore); err != nil {
		return err
	}
	return checkBound("sectionCRaw", sectionCRaw, MaxScore)
}

func checkBound(field string, value *float64, limit float64) error {
	if v := Normalize(value); v != nil && *v > limit {
		return ErrScoreOutOfRange.WithDetail("field", field).WithDetail("max", limit)
	}
	return nil
}

// Normalize maps absent or non-finite inputs to nil and clamps negatives to 0.
func Normalize(value *float64) *float64 {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return nil
	}
	v := *value
	if v < 0 {
		v = 0
	}
	return &v
}

func valueOrZero(value *float64) float64 {
	if v := Normalize(value); v != nil {
		return *v
	}
	return 0
}

func positive(value *float64) bool {
	v := Normalize(value)
	return v != nil && *v > 0
}

// roundHalfUp rounds to an integer with halves away from zero; totals are
// never negative so this is half-up.
func roundHalfUp(d decimal.Decimal) float64 {
	return roundTo(d, 0)
}

func roundTo(d decimal.Decimal, places int32) float64 {
	f, _ := d.Round(places).Float64()
	return f
}
