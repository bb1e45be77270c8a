package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/med-tracker/backend/internal/storage/models"
)

// BatchWriter groups inserts into a single transaction so the builder can
// commit per batch instead of per record.
type BatchWriter struct {
	tx              *sql.Tx
	drugStmt        *sql.Stmt
	interactionStmt *sql.Stmt
	foodStmt        *sql.Stmt
}

func (c *Client) NewBatchWriter() (*BatchWriter, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	drugStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO drugs
		(id, name, description, indication, mechanism_of_action, toxicity)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare drug insert: %w", err)
	}

	interactionStmt, err := tx.Prepare(`
		INSERT INTO drug_interactions
		(drug_id, interacting_drug_id, interacting_drug_name, description)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare interaction insert: %w", err)
	}

	foodStmt, err := tx.Prepare(`
		INSERT INTO food_interactions (drug_id, description) VALUES (?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare food interaction insert: %w", err)
	}

	return &BatchWriter{
		tx:              tx,
		drugStmt:        drugStmt,
		interactionStmt: interactionStmt,
		foodStmt:        foodStmt,
	}, nil
}

func (w *BatchWriter) InsertDrug(drug *models.Drug) error {
	_, err := w.drugStmt.Exec(
		drug.ID,
		drug.Name,
		drug.Description,
		drug.Indication,
		drug.MechanismOfAction,
		drug.Toxicity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert drug: %w", err)
	}
	return nil
}

func (w *BatchWriter) InsertInteraction(interaction *models.DrugInteraction) error {
	_, err := w.interactionStmt.Exec(
		interaction.DrugID,
		interaction.InteractingDrugID,
		interaction.InteractingDrugName,
		interaction.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

func (w *BatchWriter) InsertFoodInteraction(food *models.FoodInteraction) error {
	_, err := w.foodStmt.Exec(food.DrugID, food.Description)
	if err != nil {
		return fmt.Errorf("failed to insert food interaction: %w", err)
	}
	return nil
}

func (w *BatchWriter) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (w *BatchWriter) Rollback() error {
	return w.tx.Rollback()
}
