package services

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeFormula lowercases a formula and collapses whitespace runs to a
// single space so cosmetically different copies compare equal. Structural
// comparison only: differently-worded formulas that compute the same value
// are still treated as distinct.
func NormalizeFormula(formula string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(formula)), " ")
}

// CalcFieldConsolidator detects calculated fields that share a name across
// workbooks but disagree on their formula.
type CalcFieldConsolidator interface {
	// RegisterField appends an observation for the named field.
	RegisterField(name, formula, source string)

	// FindDuplicates returns, for every field name registered with two or
	// more differing normalized formulas, the distinct variations and a
	// recommended canonical formula.
	FindDuplicates() map[string]models.DuplicateField
}

type calcFieldConsolidator struct {
	registry map[string][]models.FieldObservation
	order    []string // field names in first-registration order
	logger   *zap.Logger
}

// NewCalcFieldConsolidator creates a new CalcFieldConsolidator.
func NewCalcFieldConsolidator(logger *zap.Logger) CalcFieldConsolidator {
	return &calcFieldConsolidator{
		registry: make(map[string][]models.FieldObservation),
		logger:   logger.Named("calc-field-consolidator"),
	}
}

var _ CalcFieldConsolidator = (*calcFieldConsolidator)(nil)

func (c *calcFieldConsolidator) RegisterField(name, formula, source string) {
	if _, seen := c.registry[name]; !seen {
		c.order = append(c.order, name)
	}
	c.registry[name] = append(c.registry[name], models.FieldObservation{
		Formula:    formula,
		Normalized: NormalizeFormula(formula),
		Source:     source,
	})
}

func (c *calcFieldConsolidator) FindDuplicates() map[string]models.DuplicateField {
	duplicates := make(map[string]models.DuplicateField)

	for _, name := range c.order {
		observations := c.registry[name]
		if len(observations) < 2 {
			continue
		}

		// One representative observation per distinct normalized formula,
		// in first-seen order.
		var variants []models.FieldObservation
		sourcesByNormalized := make(map[string][]string)
		countByNormalized := make(map[string]int)
		for _, o := range observations {
			if _, seen := countByNormalized[o.Normalized]; !seen {
				variants = append(variants, o)
			}
			countByNormalized[o.Normalized]++
			sourcesByNormalized[o.Normalized] = append(sourcesByNormalized[o.Normalized], o.Source)
		}
		if len(variants) < 2 {
			continue
		}

		// Most common normalized formula wins; ties keep the variant seen
		// first.
		recommended := variants[0]
		for _, v := range variants[1:] {
			if countByNormalized[v.Normalized] > countByNormalized[recommended.Normalized] {
				recommended = v
			}
		}

		duplicates[name] = models.DuplicateField{
			Variations: variants,
			Recommendation: models.FieldRecommendation{
				Formula: recommended.Formula,
				Sources: sourcesByNormalized[recommended.Normalized],
			},
		}

		c.logger.Debug("Calculated field has conflicting formulas",
			zap.String("field", name),
			zap.Int("variants", len(variants)))
	}

	return duplicates
}
