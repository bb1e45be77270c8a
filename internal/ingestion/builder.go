package ingestion

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/storage/models"
	"github.com/med-tracker/backend/internal/storage/sqlite"
	"github.com/med-tracker/backend/pkg/logger"
)

// Builder materializes the parsed record stream into the store, exactly
// once. Writes are batched; a crash mid-build leaves the store unusable and
// the remediation is to delete and rebuild. Callers must not run two builds
// against the same store concurrently.
type Builder struct {
	db            *sqlite.Client
	parser        *Parser
	batchSize     int
	progressEvery int
}

// BuildResult reports what a build pass did. NoOp is set when the store
// was already populated and no force flag was given.
type BuildResult struct {
	NoOp             bool
	Drugs            int
	Interactions     int
	FoodInteractions int
	Skipped          int
}

func NewBuilder(db *sqlite.Client) *Builder {
	return &Builder{
		db:            db,
		parser:        NewParser(),
		batchSize:     500,
		progressEvery: 1000,
	}
}

// SetBatchSize overrides the number of drug records per transaction.
func (b *Builder) SetBatchSize(n int) {
	if n > 0 {
		b.batchSize = n
	}
}

// SetProgressEvery overrides the progress-log interval.
func (b *Builder) SetProgressEvery(n int) {
	if n > 0 {
		b.progressEvery = n
	}
}

// Build parses the source document and writes it into the store. Safe to
// call on every process start: an already-populated store is a no-op unless
// force is set, in which case the store is dropped and rebuilt.
func (b *Builder) Build(ctx context.Context, src io.Reader, force bool) (*BuildResult, error) {
	if err := b.db.InitSchema(); err != nil {
		return nil, err
	}

	populated, err := b.db.Initialized()
	if err != nil {
		return nil, err
	}

	if populated && !force {
		count, err := b.db.DrugCount()
		if err != nil {
			return nil, err
		}
		logger.Info("Store already built, skipping ingestion", zap.Int("drugs", count))
		return &BuildResult{NoOp: true, Drugs: count}, nil
	}

	if populated && force {
		logger.Info("Forced rebuild requested, dropping existing store")
		if err := b.db.DropSchema(); err != nil {
			return nil, err
		}
		if err := b.db.InitSchema(); err != nil {
			return nil, err
		}
	}

	result := &BuildResult{}

	batch, err := b.db.NewBatchWriter()
	if err != nil {
		return nil, err
	}

	stats, err := b.parser.Parse(src, func(rec *DrugRecord) error {
		if err := writeRecord(batch, rec); err != nil {
			return err
		}

		result.Drugs++
		result.Interactions += len(rec.DrugInteractions)
		result.FoodInteractions += len(rec.FoodInteractions)

		if result.Drugs%b.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("build interrupted: %w", err)
			}
			if err := batch.Commit(); err != nil {
				return err
			}
			batch, err = b.db.NewBatchWriter()
			if err != nil {
				return err
			}
		}

		if result.Drugs%b.progressEvery == 0 {
			logger.Info("Ingestion progress",
				zap.Int("drugs", result.Drugs),
				zap.Int("interactions", result.Interactions),
			)
		}

		return nil
	})
	if err != nil {
		if batch != nil {
			batch.Rollback()
		}
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	if err := batch.Commit(); err != nil {
		return nil, err
	}

	result.Skipped = stats.Skipped

	logger.Info("Store build complete",
		zap.Int("drugs", result.Drugs),
		zap.Int("interactions", result.Interactions),
		zap.Int("food_interactions", result.FoodInteractions),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

func writeRecord(batch *sqlite.BatchWriter, rec *DrugRecord) error {
	drug := &models.Drug{
		ID:                rec.ID,
		Name:              rec.Name,
		Description:       rec.Description,
		Indication:        rec.Indication,
		MechanismOfAction: rec.MechanismOfAction,
		Toxicity:          rec.Toxicity,
	}
	if err := batch.InsertDrug(drug); err != nil {
		return err
	}

	for _, interaction := range rec.DrugInteractions {
		// Edges referencing drugs outside the loaded set are kept, keyed
		// by the denormalized name.
		err := batch.InsertInteraction(&models.DrugInteraction{
			DrugID:              rec.ID,
			InteractingDrugID:   interaction.DrugBankID,
			InteractingDrugName: interaction.Name,
			Description:         interaction.Description,
		})
		if err != nil {
			return err
		}
	}

	for _, food := range rec.FoodInteractions {
		err := batch.InsertFoodInteraction(&models.FoodInteraction{
			DrugID:      rec.ID,
			Description: food,
		})
		if err != nil {
			return err
		}
	}

	return nil
}
