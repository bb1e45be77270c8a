package query

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/med-tracker/backend/internal/ingestion"
	"github.com/med-tracker/backend/internal/storage/sqlite"
	"github.com/med-tracker/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

const fixtureXML = `<?xml version="1.0" encoding="UTF-8"?>
<drugbank xmlns="http://www.drugbank.ca">
  <drug>
    <drugbank-id primary="true">DB00945</drugbank-id>
    <name>Acetylsalicylic acid</name>
    <description>Commonly marketed as aspirin.</description>
    <drug-interactions>
      <drug-interaction>
        <drugbank-id>DB00682</drugbank-id>
        <name>Warfarin</name>
        <description>Increased risk of bleeding.</description>
      </drug-interaction>
    </drug-interactions>
  </drug>
  <drug>
    <drugbank-id primary="true">DB00682</drugbank-id>
    <name>Warfarin</name>
    <food-interactions>
      <food-interaction>Avoid drastic changes in dietary leafy vegetable intake.</food-interaction>
    </food-interactions>
  </drug>
  <drug>
    <drugbank-id primary="true">DB01147</drugbank-id>
    <name>Cloxacillin</name>
  </drug>
  <drug>
    <drugbank-id primary="true">DB00485</drugbank-id>
    <name>Dicloxacillin</name>
    <drug-interactions>
      <drug-interaction>
        <drugbank-id></drugbank-id>
        <name>Cloxacillin</name>
        <description>Additive penicillin effect.</description>
      </drug-interaction>
    </drug-interactions>
  </drug>
</drugbank>`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "drugbank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	builder := ingestion.NewBuilder(store)
	_, err = builder.Build(context.Background(), strings.NewReader(fixtureXML), false)
	require.NoError(t, err)

	return NewEngine(store, nil)
}

func TestSearchSubstringMatch(t *testing.T) {
	engine := newTestEngine(t)

	results, err := engine.Search("asp", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "DB00945", results[0].ID)
	assert.Equal(t, "Acetylsalicylic acid", results[0].Name)
}

func TestSearchMatchesAliasKeys(t *testing.T) {
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "drugbank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	builder := ingestion.NewBuilder(store)
	_, err = builder.Build(context.Background(), strings.NewReader(fixtureXML), false)
	require.NoError(t, err)

	engine := NewEngine(store, map[string]string{"Coumadin": "warfarin"})

	results, err := engine.Search("coum", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "DB00682", results[0].ID)
	assert.Equal(t, "Warfarin", results[0].Name)
}

func TestSearchNameMatchesPrecedeAliasMatches(t *testing.T) {
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "drugbank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	builder := ingestion.NewBuilder(store)
	_, err = builder.Build(context.Background(), strings.NewReader(fixtureXML), false)
	require.NoError(t, err)

	// The alias resolves to a drug the name scan already found, so it
	// must not reappear as a second entry.
	engine := NewEngine(store, map[string]string{"cloxapen": "Cloxacillin"})

	results, err := engine.Search("clox", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Cloxacillin", results[0].Name)
	assert.Equal(t, "Dicloxacillin", results[1].Name)
}

func TestSearchEmptyTermReturnsNothing(t *testing.T) {
	engine := newTestEngine(t)

	for _, term := range []string{"", "   ", "\t"} {
		results, err := engine.Search(term, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	engine := newTestEngine(t)

	results, err := engine.Search("cloxacillin", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGetDetailsExactMatchIsCaseInsensitive(t *testing.T) {
	engine := newTestEngine(t)

	drug, err := engine.GetDetails("ACETYLSALICYLIC ACID")
	require.NoError(t, err)
	require.NotNil(t, drug)
	assert.Equal(t, "DB00945", drug.ID)
}

func TestGetDetailsResolvesAlias(t *testing.T) {
	engine := newTestEngine(t)

	drug, err := engine.GetDetails("aspirin")
	require.NoError(t, err)
	require.NotNil(t, drug)
	assert.Equal(t, "DB00945", drug.ID)
	assert.Equal(t, "Acetylsalicylic acid", drug.Name)
}

func TestGetDetailsUniqueSubstringResolves(t *testing.T) {
	engine := newTestEngine(t)

	drug, err := engine.GetDetails("diclox")
	require.NoError(t, err)
	require.NotNil(t, drug)
	assert.Equal(t, "Dicloxacillin", drug.Name)
}

func TestGetDetailsAmbiguousSubstringIsUnresolved(t *testing.T) {
	engine := newTestEngine(t)

	// "oxacill" appears in both Cloxacillin and Dicloxacillin, so the
	// resolution must degrade to absent rather than guess.
	drug, err := engine.GetDetails("oxacill")
	require.NoError(t, err)
	assert.Nil(t, drug)
}

func TestGetDetailsUnknownNameIsUnresolved(t *testing.T) {
	engine := newTestEngine(t)

	drug, err := engine.GetDetails("completely unknown substance")
	require.NoError(t, err)
	assert.Nil(t, drug)
}

func TestGetInteractionsSymmetric(t *testing.T) {
	engine := newTestEngine(t)

	forward, err := engine.GetInteractions([]string{"aspirin", "warfarin"})
	require.NoError(t, err)
	require.Len(t, forward, 1)

	assert.Equal(t, "DB00945", forward[0].DrugID)
	assert.Equal(t, "Acetylsalicylic acid", forward[0].DrugName)
	assert.Equal(t, "DB00682", forward[0].OtherDrugID)
	assert.Equal(t, "Warfarin", forward[0].OtherDrugName)
	assert.Equal(t, "Increased risk of bleeding.", forward[0].Description)

	reversed, err := engine.GetInteractions([]string{"warfarin", "aspirin"})
	require.NoError(t, err)
	assert.Equal(t, forward, reversed)
}

func TestGetInteractionsExcludesUnresolvedNames(t *testing.T) {
	engine := newTestEngine(t)

	views, err := engine.GetInteractions([]string{"aspirin", "warfarin", "unknowndrugxyz"})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestGetInteractionsNoKnownEdge(t *testing.T) {
	engine := newTestEngine(t)

	views, err := engine.GetInteractions([]string{"cloxacillin", "warfarin"})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestGetInteractionsNameKeyedEdge(t *testing.T) {
	engine := newTestEngine(t)

	// The authored edge carries no drugbank-id, only the name of the
	// other drug, and must still be reachable by a pair query.
	views, err := engine.GetInteractions([]string{"Cloxacillin", "Dicloxacillin"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "DB00485", views[0].DrugID)
	assert.Equal(t, "Dicloxacillin", views[0].DrugName)
	assert.Equal(t, "DB01147", views[0].OtherDrugID)
	assert.Equal(t, "Cloxacillin", views[0].OtherDrugName)
	assert.Equal(t, "Additive penicillin effect.", views[0].Description)
}

func TestGetFoodInteractions(t *testing.T) {
	engine := newTestEngine(t)

	none, err := engine.GetFoodInteractions("aspirin")
	require.NoError(t, err)
	assert.Empty(t, none)

	foods, err := engine.GetFoodInteractions("warfarin")
	require.NoError(t, err)
	require.Len(t, foods, 1)
	assert.Contains(t, foods[0], "leafy vegetable")
}

func TestStatusReportsBuiltStore(t *testing.T) {
	engine := newTestEngine(t)

	status, err := engine.Status()
	require.NoError(t, err)
	assert.True(t, status.Initialized)
	assert.Equal(t, 4, status.Drugs)
}

func TestQueriesBeforeBuildReturnNotInitialized(t *testing.T) {
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema())

	engine := NewEngine(store, nil)

	_, err = engine.Search("asp", 0)
	assert.ErrorIs(t, err, sqlite.ErrStoreNotInitialized)

	_, err = engine.GetDetails("aspirin")
	assert.ErrorIs(t, err, sqlite.ErrStoreNotInitialized)

	_, err = engine.GetInteractions([]string{"aspirin", "warfarin"})
	assert.ErrorIs(t, err, sqlite.ErrStoreNotInitialized)

	status, err := engine.Status()
	require.NoError(t, err)
	assert.False(t, status.Initialized)
}

func TestCustomAliasOverride(t *testing.T) {
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "drugbank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	builder := ingestion.NewBuilder(store)
	_, err = builder.Build(context.Background(), strings.NewReader(fixtureXML), false)
	require.NoError(t, err)

	engine := NewEngine(store, map[string]string{"Coumadin": "warfarin"})

	drug, err := engine.GetDetails("coumadin")
	require.NoError(t, err)
	require.NotNil(t, drug)
	assert.Equal(t, "DB00682", drug.ID)
}
