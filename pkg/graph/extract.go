package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillkb/quill/backend/pkg/ai"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/kg"
)

type extractEntity struct {
	Name        string   `json:"name" jsonschema_description:"Name of the entity as it appears in the text, singular form"`
	Type        string   `json:"type" jsonschema:"enum=concept,enum=person,enum=method,enum=term" jsonschema_description:"Kind of entity"`
	Description string   `json:"description" jsonschema_description:"One-sentence description grounded in the text"`
	Aliases     []string `json:"aliases" jsonschema_description:"Aliases and abbreviations the text uses for this entity"`
}

type extractRelation struct {
	Type        string  `json:"type" jsonschema_description:"Relation type, preferably one of the allowed types"`
	Source      string  `json:"source" jsonschema_description:"Name of the source entity, as identified in the entity list"`
	Target      string  `json:"target" jsonschema_description:"Name of the target entity, as identified in the entity list"`
	Description string  `json:"description" jsonschema_description:"Short description of the relation"`
	Weight      float64 `json:"weight" jsonschema_description:"How central the relation is to this text, 0 to 1"`
	Confidence  float64 `json:"confidence" jsonschema_description:"How explicitly the text supports the relation, 0 to 1"`
	Evidence    string  `json:"evidence" jsonschema_description:"Supporting quotes or close paraphrases, joined with '; '"`
}

type extractResponse struct {
	Entities  []extractEntity   `json:"entities" jsonschema_description:"Entities the text teaches or uses"`
	Relations []extractRelation `json:"relations" jsonschema_description:"Relations between the extracted entities"`
}

// extractFromUnit runs one structured extraction call and returns the
// draft nodes and edges for this unit.
func (c *BuilderClient) extractFromUnit(
	ctx context.Context,
	section common.Section,
	unit common.Unit,
) (kg.Draft, error) {
	prompt := fmt.Sprintf(
		ai.ExtractionPrompt,
		section.Topic,
		section.Chapter,
		section.Subchapter,
		strings.Join(kg.RelationTypes(), ", "),
		unit.Text,
	)

	var res extractResponse
	err := c.aiClient.GenerateCompletionWithFormat(
		ctx,
		"extract_knowledge_graph",
		"Extract entities and relations from one unit of section text.",
		prompt,
		&res,
	)
	if err != nil {
		return kg.Draft{}, err
	}
	if len(res.Entities) == 0 {
		return kg.Draft{}, fmt.Errorf("extraction returned no entities for unit %d", unit.Index)
	}

	draft := kg.Draft{
		Nodes: make([]kg.DraftNode, 0, len(res.Entities)),
		Edges: make([]kg.DraftEdge, 0, len(res.Relations)),
	}
	for _, entity := range res.Entities {
		draft.Nodes = append(draft.Nodes, kg.DraftNode{
			Name:        entity.Name,
			Type:        entity.Type,
			Description: entity.Description,
			Aliases:     entity.Aliases,
		})
	}
	for _, rel := range res.Relations {
		draft.Edges = append(draft.Edges, kg.DraftEdge{
			Type:        rel.Type,
			Source:      rel.Source,
			Target:      rel.Target,
			Description: rel.Description,
			Weight:      rel.Weight,
			Confidence:  rel.Confidence,
			Evidence:    rel.Evidence,
		})
	}
	return draft, nil
}
