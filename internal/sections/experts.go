package sections

import (
	"context"

	"go.uber.org/zap"

	"github.com/kingrea/sectorpages/internal/identity"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// Experts renders the experts widget shortcode from an entity's resolved
// expert set. Unresolved names are left out.
type Experts struct {
	lookup *identity.Lookup
	logger *zap.Logger
}

// NewExperts builds the generator over a run's identity lookup.
func NewExperts(lookup *identity.Lookup, logger *zap.Logger) *Experts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Experts{lookup: lookup, logger: logger}
}

// Generate implements rules.Generator.
func (x *Experts) Generate(_ context.Context, e *taxonomy.Entity) (any, error) {
	ids, missing := x.lookup.IDs(e.Attributes.Items())
	if len(missing) > 0 {
		x.logger.Warn("experts not found in user directory",
			zap.Stringer("entity", e),
			zap.Strings("experts", missing))
	}
	return identity.ExpertWidget(ids), nil
}

// ExpertLine is one row of the experts report.
type ExpertLine struct {
	Entity  string
	Level   taxonomy.Level
	Names   []string
	IDs     []string
	Missing []string
}

// Empty reports whether the entity ends up with no experts at all.
func (l ExpertLine) Empty() bool {
	return len(l.IDs) == 0
}

// ExpertReport lists each entity's resolved experts in taxonomy order.
func ExpertReport(entities []taxonomy.Entity, lookup *identity.Lookup) []ExpertLine {
	lines := make([]ExpertLine, 0, len(entities))
	for i := range entities {
		e := &entities[i]
		names := e.Attributes.Items()
		ids, missing := lookup.IDs(names)
		lines = append(lines, ExpertLine{
			Entity:  e.String(),
			Level:   e.Level,
			Names:   names,
			IDs:     ids,
			Missing: missing,
		})
	}
	return lines
}
