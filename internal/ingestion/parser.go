package ingestion

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/med-tracker/backend/pkg/logger"
)

// DrugRecord is one normalized drug emitted by the parser, in document
// order. Optional fields are empty strings / nil slices when the source
// element omitted them.
type DrugRecord struct {
	ID                string
	Name              string
	Description       string
	Indication        string
	MechanismOfAction string
	Toxicity          string
	DrugInteractions  []InteractionRecord
	FoodInteractions  []string
}

// InteractionRecord is one drug-drug edge as authored in the source. The
// referenced drug may not be part of the loaded set, so the name is
// carried alongside the id.
type InteractionRecord struct {
	DrugBankID  string
	Name        string
	Description string
}

// ParseStats reports what the parser saw, including records it had to skip.
type ParseStats struct {
	Drugs   int
	Skipped int
}

// XML shapes for a single <drug> element. Only the consumed fields are
// declared; everything else in the document is ignored.
type drugElement struct {
	IDs              []drugBankID         `xml:"drugbank-id"`
	Name             string               `xml:"name"`
	Description      string               `xml:"description"`
	Indication       string               `xml:"indication"`
	Mechanism        string               `xml:"mechanism-of-action"`
	Toxicity         string               `xml:"toxicity"`
	DrugInteractions []interactionElement `xml:"drug-interactions>drug-interaction"`
	FoodInteractions []string             `xml:"food-interactions>food-interaction"`
}

type drugBankID struct {
	Primary string `xml:"primary,attr"`
	Value   string `xml:",chardata"`
}

type interactionElement struct {
	DrugBankID  string `xml:"drugbank-id"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

// Parser streams drug records out of a DrugBank XML export. It decodes one
// top-level <drug> element at a time, so memory stays bounded regardless of
// document size.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse walks the token stream and calls emit for each well-formed drug
// record, in document order. A record missing its primary id or name is
// skipped with a warning; an error returned by emit aborts the stream.
func (p *Parser) Parse(r io.Reader, emit func(rec *DrugRecord) error) (*ParseStats, error) {
	decoder := xml.NewDecoder(r)
	stats := &ParseStats{}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read source document: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		// The document root; descend into it.
		if start.Name.Local == "drugbank" {
			continue
		}

		if start.Name.Local != "drug" {
			if err := decoder.Skip(); err != nil {
				return stats, fmt.Errorf("failed to skip element: %w", err)
			}
			continue
		}

		var elem drugElement
		if err := decoder.DecodeElement(&elem, &start); err != nil {
			stats.Skipped++
			logger.Warn("Skipping unparseable drug element", zap.Error(err))
			continue
		}

		rec := elem.toRecord()
		if rec == nil {
			stats.Skipped++
			logger.Warn("Skipping drug element without primary id or name")
			continue
		}

		stats.Drugs++
		if err := emit(rec); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (e *drugElement) toRecord() *DrugRecord {
	var primaryID string
	for _, id := range e.IDs {
		if id.Primary == "true" {
			primaryID = strings.TrimSpace(id.Value)
			break
		}
	}

	name := strings.TrimSpace(e.Name)
	if primaryID == "" || name == "" {
		return nil
	}

	rec := &DrugRecord{
		ID:                primaryID,
		Name:              name,
		Description:       strings.TrimSpace(e.Description),
		Indication:        strings.TrimSpace(e.Indication),
		MechanismOfAction: strings.TrimSpace(e.Mechanism),
		Toxicity:          strings.TrimSpace(e.Toxicity),
	}

	for _, interaction := range e.DrugInteractions {
		interactionName := strings.TrimSpace(interaction.Name)
		if interactionName == "" {
			continue
		}
		rec.DrugInteractions = append(rec.DrugInteractions, InteractionRecord{
			DrugBankID:  strings.TrimSpace(interaction.DrugBankID),
			Name:        interactionName,
			Description: strings.TrimSpace(interaction.Description),
		})
	}

	for _, food := range e.FoodInteractions {
		food = strings.TrimSpace(food)
		if food != "" {
			rec.FoodInteractions = append(rec.FoodInteractions, food)
		}
	}

	return rec
}
