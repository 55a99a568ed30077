package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

// ViewConsolidator collects view definitions registered across workbooks
// and resolves them into unified views. Registration is append-only; every
// merge decision is deferred to Consolidate so the full population for a
// name is visible before any choice is made.
type ViewConsolidator interface {
	// RegisterView appends an observation for name. It never merges or
	// overwrites at registration time.
	RegisterView(name string, def models.ViewDefinition, source string)

	// Consolidate resolves all registered names. It is a pure function of
	// the registry contents: repeated calls on an unchanged registry yield
	// identical results.
	Consolidate() *models.UnifiedViews
}

// viewObservation is owned exclusively by the consolidator's per-name list.
type viewObservation struct {
	definition  models.ViewDefinition
	source      string
	fingerprint string
}

type viewConsolidator struct {
	registry map[string][]viewObservation
	order    []string // view names in first-registration order
	logger   *zap.Logger
}

// NewViewConsolidator creates a new ViewConsolidator.
func NewViewConsolidator(logger *zap.Logger) ViewConsolidator {
	return &viewConsolidator{
		registry: make(map[string][]viewObservation),
		logger:   logger.Named("view-consolidator"),
	}
}

var _ ViewConsolidator = (*viewConsolidator)(nil)

func (c *viewConsolidator) RegisterView(name string, def models.ViewDefinition, source string) {
	if _, seen := c.registry[name]; !seen {
		c.order = append(c.order, name)
	}
	c.registry[name] = append(c.registry[name], viewObservation{
		definition:  def,
		source:      source,
		fingerprint: Fingerprint(def),
	})
}

func (c *viewConsolidator) Consolidate() *models.UnifiedViews {
	unified := &models.UnifiedViews{
		Order: append([]string(nil), c.order...),
		Views: make(map[string]*models.UnifiedView, len(c.order)),
	}
	for _, name := range c.order {
		unified.Views[name] = c.consolidateName(name, c.registry[name])
	}
	return unified
}

func (c *viewConsolidator) consolidateName(name string, observations []viewObservation) *models.UnifiedView {
	sources := make([]string, 0, len(observations))
	for _, o := range observations {
		sources = append(sources, o.source)
	}

	if len(observations) == 1 {
		return &models.UnifiedView{
			Name:            name,
			SourceWorkbooks: sources,
			Canonical:       observations[0].definition,
			Variations:      []models.ViewVariation{},
			MergeStrategy:   models.MergeStrategyMostComplete,
		}
	}

	distinct := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		distinct[o.fingerprint] = struct{}{}
	}

	if len(distinct) == 1 {
		return &models.UnifiedView{
			Name:            name,
			SourceWorkbooks: sources,
			Canonical:       observations[0].definition,
			Variations:      []models.ViewVariation{},
			MergeStrategy:   models.MergeStrategyIdentical,
		}
	}

	// Most complete definition wins; ties keep the earliest registration.
	canonical := observations[0]
	for _, o := range observations[1:] {
		if completeness(o.definition) > completeness(canonical.definition) {
			canonical = o
		}
	}

	variations := make([]models.ViewVariation, 0, len(observations)-1)
	for _, o := range observations {
		if o.fingerprint == canonical.fingerprint {
			continue
		}
		variations = append(variations, models.ViewVariation{
			Source:     o.source,
			Difference: Difference(canonical.definition, o.definition),
		})
	}

	strategy := models.MergeStrategyMostComplete
	if len(variations) > 0 {
		strategy = models.MergeStrategyManualReview
	}

	c.logger.Debug("Consolidated view with diverging definitions",
		zap.String("view", name),
		zap.Int("observations", len(observations)),
		zap.Int("variations", len(variations)),
		zap.String("merge_strategy", strategy))

	return &models.UnifiedView{
		Name:            name,
		SourceWorkbooks: sources,
		Canonical:       canonical.definition,
		Variations:      variations,
		MergeStrategy:   strategy,
	}
}

func completeness(def models.ViewDefinition) int {
	return len(def.Columns) + len(def.CalculatedFields)
}

// Fingerprint returns a deterministic digest over the identity-relevant
// fields of a definition: table plus sorted column and calculated-field
// names. Datatype and role changes are invisible to it, so a column whose
// type differs across workbooks still fingerprints as identical.
func Fingerprint(def models.ViewDefinition) string {
	cols := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		cols = append(cols, c.Name)
	}
	sort.Strings(cols)

	calcs := make([]string, 0, len(def.CalculatedFields))
	for _, cf := range def.CalculatedFields {
		calcs = append(calcs, cf.Name)
	}
	sort.Strings(calcs)

	key := struct {
		Table      string   `json:"table"`
		Columns    []string `json:"columns"`
		CalcFields []string `json:"calc_fields"`
	}{def.Table, cols, calcs}

	// Marshaling a struct of strings cannot fail.
	payload, _ := json.Marshal(key)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Difference computes the structural diff between the canonical definition
// and another observation of the same view.
func Difference(canonical, other models.ViewDefinition) models.ViewDifference {
	canonCols := columnNames(canonical)
	otherCols := columnNames(other)
	canonCalcs := calcFieldNames(canonical)
	otherCalcs := calcFieldNames(other)

	return models.ViewDifference{
		ColumnsOnlyInCanonical:    setDifference(canonCols, otherCols),
		ColumnsOnlyInOther:        setDifference(otherCols, canonCols),
		CalcFieldsOnlyInCanonical: setDifference(canonCalcs, otherCalcs),
		CalcFieldsOnlyInOther:     setDifference(otherCalcs, canonCalcs),
	}
}

func columnNames(def models.ViewDefinition) []string {
	names := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		names = append(names, c.Name)
	}
	return names
}

func calcFieldNames(def models.ViewDefinition) []string {
	names := make([]string, 0, len(def.CalculatedFields))
	for _, cf := range def.CalculatedFields {
		names = append(names, cf.Name)
	}
	return names
}

// setDifference returns the names in a that are absent from b, sorted.
func setDifference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, name := range b {
		inB[name] = struct{}{}
	}

	out := make([]string, 0)
	seen := make(map[string]struct{}, len(a))
	for _, name := range a {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := inB[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
