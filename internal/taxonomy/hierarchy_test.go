package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func l1(sector string, experts ...string) Entity {
	return Entity{Level: L1, Sector: sector, Slug: sector, Attributes: NewAttributeSet(experts...)}
}

func l2(sector, subsector string, experts ...string) Entity {
	return Entity{Level: L2, Sector: sector, Subsector: subsector, Slug: subsector, Attributes: NewAttributeSet(experts...)}
}

func l3(sector, subsector, category string, experts ...string) Entity {
	return Entity{Level: L3, Sector: sector, Subsector: subsector, Category: category, Slug: category, Attributes: NewAttributeSet(experts...)}
}

func find(t *testing.T, entities []Entity, key Key) *Entity {
	t.Helper()
	for i := range entities {
		if entities[i].Key() == key {
			return &entities[i]
		}
	}
	t.Fatalf("entity %s not found", key)
	return nil
}

func TestResolveHierarchyCategoryInheritsFromSubsector(t *testing.T) {
	entities := []Entity{
		l3("Consumer", "Retail", "Grocery"),
		l2("Consumer", "Retail", "Asha", "Ravi"),
		l3("Consumer", "Retail", "Fashion", "Meera"),
		l1("Consumer"),
	}
	ResolveHierarchy(entities)

	grocery := find(t, entities, Key{Level: L3, Sector: "Consumer", Subsector: "Retail", Category: "Grocery"})
	retail := find(t, entities, Key{Level: L2, Sector: "Consumer", Subsector: "Retail"})
	fashion := find(t, entities, Key{Level: L3, Sector: "Consumer", Subsector: "Retail", Category: "Fashion"})

	assert.Equal(t, []string{"Asha", "Ravi"}, grocery.Attributes.Items())
	assert.Equal(t, []string{"Meera"}, fashion.Attributes.Items(), "declared sets are kept")

	grocery.Attributes.Add("Zoe")
	assert.Equal(t, []string{"Asha", "Ravi"}, retail.Attributes.Items(), "inherited set must be a copy")
}

func TestResolveHierarchySectorAggregatesSubsectors(t *testing.T) {
	entities := []Entity{
		l1("Consumer", "Lead"),
		l2("Consumer", "Retail", "Asha", "Ravi"),
		l2("Consumer", "Goods", "Ravi", "Kiran"),
		l2("B2B", "SaaS", "Other"),
		l1("B2B"),
	}
	declared := entities[0].Attributes.Clone()
	ResolveHierarchy(entities)

	consumer := find(t, entities, Key{Level: L1, Sector: "Consumer"})
	require.Equal(t, []string{"Lead", "Asha", "Ravi", "Kiran"}, consumer.Attributes.Items())
	for _, item := range declared.Items() {
		assert.True(t, consumer.Attributes.Contains(item))
	}
	b2b := find(t, entities, Key{Level: L1, Sector: "B2B"})
	assert.Equal(t, []string{"Other"}, b2b.Attributes.Items())
}

func TestResolveHierarchyNeverModifiesSubsectors(t *testing.T) {
	entities := []Entity{
		l1("Consumer", "Lead"),
		l2("Consumer", "Retail"),
		l3("Consumer", "Retail", "Grocery", "Meera"),
	}
	ResolveHierarchy(entities)

	retail := find(t, entities, Key{Level: L2, Sector: "Consumer", Subsector: "Retail"})
	assert.True(t, retail.Attributes.Empty(), "L2 does not inherit from its categories")
	consumer := find(t, entities, Key{Level: L1, Sector: "Consumer"})
	assert.Equal(t, []string{"Lead"}, consumer.Attributes.Items())
}

func TestResolveHierarchyNoGrandparentFallback(t *testing.T) {
	entities := []Entity{
		l1("Consumer", "Lead"),
		l2("Consumer", "Retail"),
		l3("Consumer", "Retail", "Grocery"),
		l3("Fintech", "Lending", "Cards"),
	}
	ResolveHierarchy(entities)

	assert.True(t, find(t, entities, Key{Level: L3, Sector: "Consumer", Subsector: "Retail", Category: "Grocery"}).Attributes.Empty())
	assert.True(t, find(t, entities, Key{Level: L3, Sector: "Fintech", Subsector: "Lending", Category: "Cards"}).Attributes.Empty(), "orphan stays empty")
}

func TestResolveHierarchyIsStableUnderInputOrder(t *testing.T) {
	forward := []Entity{
		l1("Consumer"),
		l2("Consumer", "Retail", "Asha"),
		l2("Consumer", "Goods", "Kiran"),
		l3("Consumer", "Goods", "Snacks"),
	}
	backward := []Entity{forward[3], forward[2], forward[1], forward[0]}
	ResolveHierarchy(forward)
	ResolveHierarchy(backward)

	for _, key := range []Key{
		{Level: L1, Sector: "Consumer"},
		{Level: L3, Sector: "Consumer", Subsector: "Goods", Category: "Snacks"},
	} {
		assert.ElementsMatch(t, find(t, forward, key).Attributes.Items(), find(t, backward, key).Attributes.Items(), key.String())
	}
}

func TestEntityNameAndDirectories(t *testing.T) {
	cat := l3("Consumer", "Retail", "Grocery")
	assert.Equal(t, "Grocery", cat.Name())
	layout := DirLayout{Root: "/data"}
	assert.Equal(t, "/data/Consumer/Retail/Grocery", layout.Dir(&cat))
	assert.Equal(t, "/data/Consumer/Retail/Grocery/hero.jpg", layout.Path(&cat, "hero.jpg"))

	parent, ok := cat.Parent()
	require.True(t, ok)
	assert.Equal(t, Key{Level: L2, Sector: "Consumer", Subsector: "Retail"}, parent)

	sector := l1("Consumer")
	_, ok = sector.Parent()
	assert.False(t, ok)
}

func TestChildrenAndFilter(t *testing.T) {
	entities := []Entity{
		l1("Consumer"),
		l2("Consumer", "Retail"),
		l3("Consumer", "Retail", "Grocery"),
		l2("Consumer", "Goods"),
		l2("B2B", "SaaS"),
	}
	kids := Children(entities, &entities[0])
	require.Len(t, kids, 2)
	assert.Equal(t, "Retail", kids[0].Name())
	assert.Equal(t, "Goods", kids[1].Name())

	assert.Len(t, Filter(entities, L2), 3)
	assert.Len(t, Filter(entities, L1, L3), 2)
}

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels(" l1, L3 ,L1")
	require.NoError(t, err)
	assert.Equal(t, []Level{L1, L3}, levels)

	_, err = ParseLevels("L4")
	require.Error(t, err)
	_, err = ParseLevels(" , ")
	require.Error(t, err)
}

func TestAttributeSetKeepsFirstSeenOrder(t *testing.T) {
	set := ParseAttributes(" Ravi, Asha,,Ravi , ")
	assert.Equal(t, []string{"Ravi", "Asha"}, set.Items())
	set.Union(NewAttributeSet("Kiran", "Asha"))
	assert.Equal(t, []string{"Ravi", "Asha", "Kiran"}, set.Items())
	assert.Equal(t, "Ravi, Asha, Kiran", set.String())
}
