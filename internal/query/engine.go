package query

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/metrics"
	"github.com/med-tracker/backend/internal/storage/models"
	"github.com/med-tracker/backend/internal/storage/sqlite"
	"github.com/med-tracker/backend/pkg/logger"
)

// candidateLimit bounds the fuzzy-resolution fetch. Two rows are enough to
// tell a unique candidate from an ambiguous one.
const candidateLimit = 2

// Engine answers read-only drug queries over a built store. It holds no
// mutable state, so all operations are safe for concurrent use.
type Engine struct {
	db      *sqlite.Client
	aliases map[string]string
}

// defaultAliases maps common brand or colloquial names to the chemical
// name the dataset catalogues them under.
var defaultAliases = map[string]string{
	"aspirin":     "acetylsalicylic acid",
	"tylenol":     "acetaminophen",
	"paracetamol": "acetaminophen",
	"advil":       "ibuprofen",
}

// NewEngine builds an engine over the given store. Extra aliases extend or
// override the built-in brand-to-generic table.
func NewEngine(db *sqlite.Client, aliases map[string]string) *Engine {
	merged := make(map[string]string, len(defaultAliases)+len(aliases))
	for name, target := range defaultAliases {
		merged[name] = target
	}
	for name, target := range aliases {
		merged[strings.ToLower(name)] = target
	}
	return &Engine{db: db, aliases: merged}
}

// Search returns summaries for drugs whose name or alias contains the
// term. Name matches come first; an alias match surfaces the drug the
// alias resolves to. An empty or whitespace term returns no results
// rather than every row.
func (e *Engine) Search(term string, limit int) ([]models.DrugSummary, error) {
	start := time.Now()
	defer observe("search", start)

	if err := e.ensureReady(); err != nil {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return []models.DrugSummary{}, nil
	}

	results, err := e.db.SearchDrugs(term, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.DrugSummary{}
	}

	results, err = e.appendAliasMatches(results, term, limit)
	if err != nil {
		return nil, err
	}

	logger.Debug("Drug search", zap.String("term", term), zap.Int("results", len(results)))
	return results, nil
}

// appendAliasMatches extends name-substring results with drugs whose
// alias contains the term. A drug already matched by name is not added
// again, and the combined list still honors the limit.
func (e *Engine) appendAliasMatches(results []models.DrugSummary, term string, limit int) ([]models.DrugSummary, error) {
	seen := make(map[string]bool, len(results))
	for _, s := range results {
		seen[s.ID] = true
	}

	lowered := strings.ToLower(term)
	var matched []string
	for key := range e.aliases {
		if strings.Contains(key, lowered) {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)

	for _, key := range matched {
		if limit > 0 && len(results) >= limit {
			break
		}
		drug, err := e.resolveUnambiguous(e.aliases[key])
		if err != nil {
			return nil, err
		}
		if drug == nil || seen[drug.ID] {
			continue
		}
		seen[drug.ID] = true
		results = append(results, models.DrugSummary{ID: drug.ID, Name: drug.Name})
	}

	return results, nil
}

// GetDetails resolves a name to its drug row. An unresolvable name yields
// (nil, nil), not an error.
func (e *Engine) GetDetails(name string) (*models.Drug, error) {
	start := time.Now()
	defer observe("details", start)

	if err := e.ensureReady(); err != nil {
		return nil, err
	}

	return e.resolve(name)
}

// GetInteractions resolves every supplied name and returns the known
// interaction records for each unordered pair, in either authored
// direction. Unresolved names are excluded from pairing rather than
// failing the call.
func (e *Engine) GetInteractions(names []string) ([]models.InteractionView, error) {
	start := time.Now()
	defer observe("interactions", start)

	if err := e.ensureReady(); err != nil {
		return nil, err
	}

	drugs, err := e.resolveAll(names)
	if err != nil {
		return nil, err
	}

	views := []models.InteractionView{}
	for i := 0; i < len(drugs); i++ {
		for j := i + 1; j < len(drugs); j++ {
			pair, err := e.interactionsForPair(drugs[i], drugs[j])
			if err != nil {
				return nil, err
			}
			views = append(views, pair...)
		}
	}

	logger.Debug("Interaction query",
		zap.Int("names", len(names)),
		zap.Int("resolved", len(drugs)),
		zap.Int("interactions", len(views)),
	)

	return views, nil
}

// GetFoodInteractions resolves a name and returns its food-interaction
// narratives. Empty when the name is unresolved or no rows exist.
func (e *Engine) GetFoodInteractions(name string) ([]string, error) {
	start := time.Now()
	defer observe("food_interactions", start)

	if err := e.ensureReady(); err != nil {
		return nil, err
	}

	drug, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	if drug == nil {
		return []string{}, nil
	}

	results, err := e.db.GetFoodInteractions(drug.ID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []string{}
	}
	return results, nil
}

// Status reports whether the store is usable and how many drugs it holds.
func (e *Engine) Status() (*models.StoreStatus, error) {
	initialized, err := e.db.Initialized()
	if err != nil {
		return nil, err
	}
	status := &models.StoreStatus{Initialized: initialized}
	if initialized {
		count, err := e.db.DrugCount()
		if err != nil {
			return nil, err
		}
		status.Drugs = count
	}
	return status, nil
}

func (e *Engine) ensureReady() error {
	initialized, err := e.db.Initialized()
	if err != nil {
		return err
	}
	if !initialized {
		return sqlite.ErrStoreNotInitialized
	}
	return nil
}

// resolve maps a user-supplied name to a drug row: exact case-insensitive
// match first, then the alias table, then a substring fallback that is
// accepted only when exactly one candidate remains. Ambiguity degrades to
// unresolved instead of guessing.
func (e *Engine) resolve(name string) (*models.Drug, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	drug, err := e.db.GetDrugByName(name)
	if err != nil {
		return nil, err
	}
	if drug != nil {
		return drug, nil
	}

	if target, ok := e.aliases[strings.ToLower(name)]; ok {
		drug, err := e.resolveUnambiguous(target)
		if err != nil {
			return nil, err
		}
		if drug != nil {
			logger.Debug("Resolved drug via alias",
				zap.String("name", name),
				zap.String("resolved", drug.Name),
			)
			return drug, nil
		}
	}

	drug, err = e.resolveUnambiguous(name)
	if err != nil {
		return nil, err
	}
	if drug != nil {
		logger.Debug("Resolved drug via partial match",
			zap.String("name", name),
			zap.String("resolved", drug.Name),
		)
	}
	return drug, nil
}

// resolveUnambiguous accepts a substring match only when it identifies a
// single drug. An exact case-insensitive hit wins outright.
func (e *Engine) resolveUnambiguous(term string) (*models.Drug, error) {
	drug, err := e.db.GetDrugByName(term)
	if err != nil {
		return nil, err
	}
	if drug != nil {
		return drug, nil
	}

	candidates, err := e.db.FindDrugsByNameSubstring(term, candidateLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) != 1 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (e *Engine) resolveAll(names []string) ([]*models.Drug, error) {
	var drugs []*models.Drug
	seen := make(map[string]bool)

	for _, name := range names {
		drug, err := e.resolve(name)
		if err != nil {
			return nil, err
		}
		if drug == nil {
			logger.Debug("Name did not resolve, excluding from pairing", zap.String("name", name))
			continue
		}
		if seen[drug.ID] {
			continue
		}
		seen[drug.ID] = true
		drugs = append(drugs, drug)
	}

	return drugs, nil
}

// interactionsForPair collects edges in both authored directions for one
// unordered pair. The pair is canonicalized by id first so the result does
// not depend on argument order.
func (e *Engine) interactionsForPair(a, b *models.Drug) ([]models.InteractionView, error) {
	if a.ID > b.ID {
		a, b = b, a
	}

	var views []models.InteractionView

	forward, err := e.db.GetInteractionsBetween(a.ID, b.ID, b.Name)
	if err != nil {
		return nil, err
	}
	for _, edge := range forward {
		views = append(views, models.InteractionView{
			DrugID:        a.ID,
			DrugName:      a.Name,
			OtherDrugID:   b.ID,
			OtherDrugName: b.Name,
			Description:   edge.Description,
		})
	}

	reverse, err := e.db.GetInteractionsBetween(b.ID, a.ID, a.Name)
	if err != nil {
		return nil, err
	}
	for _, edge := range reverse {
		views = append(views, models.InteractionView{
			DrugID:        b.ID,
			DrugName:      b.Name,
			OtherDrugID:   a.ID,
			OtherDrugName: a.Name,
			Description:   edge.Description,
		})
	}

	return views, nil
}

func observe(operation string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
