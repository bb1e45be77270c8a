package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/storage/models"
	"github.com/med-tracker/backend/pkg/logger"
)

// ErrStoreNotInitialized signals that queries were attempted before a
// successful build. Callers are expected to trigger the store builder
// rather than treat this as a generic failure.
var ErrStoreNotInitialized = errors.New("drugbank store not initialized")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drugs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		indication TEXT,
		mechanism_of_action TEXT,
		toxicity TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_drugs_name ON drugs(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS drug_interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		drug_id TEXT NOT NULL,
		interacting_drug_id TEXT,
		interacting_drug_name TEXT NOT NULL,
		description TEXT,
		FOREIGN KEY (drug_id) REFERENCES drugs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_drug_interactions_drug_id ON drug_interactions(drug_id);

	CREATE TABLE IF NOT EXISTS food_interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		drug_id TEXT NOT NULL,
		description TEXT NOT NULL,
		FOREIGN KEY (drug_id) REFERENCES drugs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_food_interactions_drug_id ON food_interactions(drug_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// DropSchema removes all tables. Used by a forced rebuild; a partially
// built store is not a supported state, so the only remediation is to
// start over.
func (c *Client) DropSchema() error {
	_, err := c.db.Exec(`
		DROP TABLE IF EXISTS food_interactions;
		DROP TABLE IF EXISTS drug_interactions;
		DROP TABLE IF EXISTS drugs;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	logger.Info("SQLite schema dropped")
	return nil
}

// Initialized reports whether the drugs table exists and is non-empty.
func (c *Client) Initialized() (bool, error) {
	var name string
	err := c.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'drugs'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check schema: %w", err)
	}

	count, err := c.DrugCount()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Client) DrugCount() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM drugs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count drugs: %w", err)
	}
	return count, nil
}

func (c *Client) InteractionCount() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM drug_interactions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

func (c *Client) FoodInteractionCount() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM food_interactions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count food interactions: %w", err)
	}
	return count, nil
}

func (c *Client) GetDrugByID(id string) (*models.Drug, error) {
	query := `SELECT id, name, description, indication, mechanism_of_action, toxicity
		FROM drugs WHERE id = ?`

	var drug models.Drug
	err := c.db.QueryRow(query, id).Scan(
		&drug.ID,
		&drug.Name,
		&drug.Description,
		&drug.Indication,
		&drug.MechanismOfAction,
		&drug.Toxicity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drug by id: %w", err)
	}

	return &drug, nil
}

// GetDrugByName matches the canonical name exactly, case-insensitively.
func (c *Client) GetDrugByName(name string) (*models.Drug, error) {
	query := `SELECT id, name, description, indication, mechanism_of_action, toxicity
		FROM drugs WHERE LOWER(name) = LOWER(?)`

	var drug models.Drug
	err := c.db.QueryRow(query, name).Scan(
		&drug.ID,
		&drug.Name,
		&drug.Description,
		&drug.Indication,
		&drug.MechanismOfAction,
		&drug.Toxicity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drug by name: %w", err)
	}

	return &drug, nil
}

// SearchDrugs returns summaries for drugs whose name contains the term,
// case-insensitively, ordered by name. A limit <= 0 means no limit.
func (c *Client) SearchDrugs(term string, limit int) ([]models.DrugSummary, error) {
	query := `SELECT id, name FROM drugs WHERE LOWER(name) LIKE LOWER(?) ORDER BY name`
	args := []interface{}{"%" + term + "%"}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search drugs: %w", err)
	}
	defer rows.Close()

	var results []models.DrugSummary
	for rows.Next() {
		var s models.DrugSummary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, s)
	}

	return results, rows.Err()
}

// FindDrugsByNameSubstring returns full rows for the fuzzy resolution
// fallback. The caller decides whether the candidate set is unambiguous.
func (c *Client) FindDrugsByNameSubstring(term string, limit int) ([]models.Drug, error) {
	query := `SELECT id, name, description, indication, mechanism_of_action, toxicity
		FROM drugs WHERE LOWER(name) LIKE LOWER(?) ORDER BY name LIMIT ?`

	rows, err := c.db.Query(query, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find drugs by substring: %w", err)
	}
	defer rows.Close()

	var results []models.Drug
	for rows.Next() {
		var d models.Drug
		err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Description,
			&d.Indication,
			&d.MechanismOfAction,
			&d.Toxicity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, d)
	}

	return results, rows.Err()
}

// GetInteractionsBetween returns edges authored from drugID to the other
// drug. Edges whose source element carried no drugbank-id are matched by
// the denormalized name instead. The store keeps edges as authored;
// symmetrization happens in the query engine.
func (c *Client) GetInteractionsBetween(drugID, otherID, otherName string) ([]models.DrugInteraction, error) {
	query := `SELECT id, drug_id, interacting_drug_id, interacting_drug_name, description
		FROM drug_interactions
		WHERE drug_id = ?
		  AND (interacting_drug_id = ?
		       OR (interacting_drug_id = '' AND LOWER(interacting_drug_name) = LOWER(?)))`

	rows, err := c.db.Query(query, drugID, otherID, otherName)
	if err != nil {
		return nil, fmt.Errorf("failed to get interactions: %w", err)
	}
	defer rows.Close()

	var results []models.DrugInteraction
	for rows.Next() {
		var di models.DrugInteraction
		err := rows.Scan(
			&di.ID,
			&di.DrugID,
			&di.InteractingDrugID,
			&di.InteractingDrugName,
			&di.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, di)
	}

	return results, rows.Err()
}

func (c *Client) GetFoodInteractions(drugID string) ([]string, error) {
	query := `SELECT description FROM food_interactions WHERE drug_id = ? ORDER BY id`

	rows, err := c.db.Query(query, drugID)
	if err != nil {
		return nil, fmt.Errorf("failed to get food interactions: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var description string
		if err := rows.Scan(&description); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, description)
	}

	return results, rows.Err()
}
