package taxonomy

type sectorKey struct{ sector string }

type subsectorKey struct{ sector, subsector string }

type categoryKey struct{ sector, subsector, category string }

// orderedSlots keeps attribute sets keyed by K in first-seen order.
type orderedSlots[K comparable] struct {
	order []K
	sets  map[K]*AttributeSet
}

func newOrderedSlots[K comparable]() *orderedSlots[K] {
	return &orderedSlots[K]{sets: map[K]*AttributeSet{}}
}

func (o *orderedSlots[K]) put(key K, set AttributeSet) {
	if _, ok := o.sets[key]; !ok {
		o.order = append(o.order, key)
	}
	clone := set.Clone()
	o.sets[key] = &clone
}

// ResolveHierarchy computes the final expert set of every entity in place.
//
// An L3 with no experts copies its parent L2's set. Each L1 gains the union
// of every L2 set in the same sector, on top of whatever it declared. L2 sets
// are only read. There is no fallback past the direct parent, and a missing
// parent is not an error.
func ResolveHierarchy(entities []Entity) {
	sectors := newOrderedSlots[sectorKey]()
	subsectors := newOrderedSlots[subsectorKey]()
	categories := newOrderedSlots[categoryKey]()

	for i := range entities {
		e := &entities[i]
		switch e.Level {
		case L1:
			sectors.put(sectorKey{e.Sector}, e.Attributes)
		case L2:
			subsectors.put(subsectorKey{e.Sector, e.Subsector}, e.Attributes)
		case L3:
			categories.put(categoryKey{e.Sector, e.Subsector, e.Category}, e.Attributes)
		}
	}

	for _, key := range categories.order {
		if !categories.sets[key].Empty() {
			continue
		}
		if parent, ok := subsectors.sets[subsectorKey{key.sector, key.subsector}]; ok {
			clone := parent.Clone()
			categories.sets[key] = &clone
		}
	}

	for _, key := range sectors.order {
		for _, child := range subsectors.order {
			if child.sector == key.sector {
				sectors.sets[key].Union(*subsectors.sets[child])
			}
		}
	}

	for i := range entities {
		e := &entities[i]
		switch e.Level {
		case L1:
			e.Attributes = sectors.sets[sectorKey{e.Sector}].Clone()
		case L2:
			e.Attributes = subsectors.sets[subsectorKey{e.Sector, e.Subsector}].Clone()
		case L3:
			e.Attributes = categories.sets[categoryKey{e.Sector, e.Subsector, e.Category}].Clone()
		}
	}
}
