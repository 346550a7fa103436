// Package survey holds the survey document (the aggregate root), the shared
// catalog it references, and the registry of provisional catalog items a
// surveyor creates offline.
package survey

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/common"
)

// Table names as held by the store.
const (
	SurveysTable    = "surveys"
	SectionsTable   = "sections"
	ElementsTable   = "elements"
	ComponentsTable = "components"
	PhrasesTable    = "phrases"
)

// Catalog entities, synced from the server.

type Section struct {
	models.Meta
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type Element struct {
	models.Meta
	Name      string `json:"name"`
	SectionID string `json:"sectionId"`
	Order     int    `json:"order"`
}

type Component struct {
	models.Meta
	Name      string `json:"name"`
	ElementID string `json:"elementId"`
}

// Phrase is a condition phrase. Components lists the catalog component ids
// it applies to.
type Phrase struct {
	models.Meta
	Name       string   `json:"name"`
	Phrase     string   `json:"phrase"`
	Type       string   `json:"type"`
	Components []string `json:"components,omitempty"`
}

// Survey is the aggregate root. Everything below it, provisional items
// included, is persisted as part of this one document.
type Survey struct {
	models.Meta
	Title    string          `json:"title"`
	Address  string          `json:"address,omitempty"`
	Status   string          `json:"status,omitempty"`
	Sections []SurveySection `json:"sections,omitempty"`
}

type SurveySection struct {
	SectionID string          `json:"sectionId"`
	Name      string          `json:"name"`
	Elements  []SurveyElement `json:"elements,omitempty"`
}

type SurveyElement struct {
	ElementID          string               `json:"elementId"`
	Name               string               `json:"name"`
	Components         []InspectedComponent `json:"components,omitempty"`
	LocalComponentDefs []LocalComponentDef  `json:"localComponentDefs,omitempty"`
	LocalConditionDefs []LocalConditionDef  `json:"localConditionDefs,omitempty"`
}

type RAGStatus string

const (
	RAGRed   RAGStatus = "red"
	RAGAmber RAGStatus = "amber"
	RAGGreen RAGStatus = "green"
)

// InspectedComponent is a component instance recorded on a survey.
// ComponentID refers to a catalog component or a local definition.
type InspectedComponent struct {
	ID          string      `json:"id"`
	ComponentID string      `json:"componentId"`
	Name        string      `json:"name"`
	Location    string      `json:"location,omitempty"`
	Description string      `json:"description,omitempty"`
	Images      []string    `json:"images,omitempty"`
	Conditions  []Condition `json:"conditions,omitempty"`
	RAGStatus   RAGStatus   `json:"ragStatus,omitempty"`
	Costings    []Costing   `json:"costings,omitempty"`
}

// Condition is a condition instance on a component. PhraseID refers to a
// catalog phrase or a local condition definition.
type Condition struct {
	ID       string `json:"id"`
	PhraseID string `json:"phraseId,omitempty"`
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
}

type Costing struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// LocalComponentDef is a component type invented on this survey.
type LocalComponentDef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ElementID string    `json:"elementId"`
	SectionID string    `json:"sectionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LocalConditionDef is a condition phrase invented on this survey.
type LocalConditionDef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	ElementID string    `json:"elementId"`
	SectionID string    `json:"sectionId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Survey) Section(id string) *SurveySection {
	for i := range s.Sections {
		if s.Sections[i].SectionID == id {
			return &s.Sections[i]
		}
	}
	return nil
}

func (sec *SurveySection) Element(id string) *SurveyElement {
	for i := range sec.Elements {
		if sec.Elements[i].ElementID == id {
			return &sec.Elements[i]
		}
	}
	return nil
}

// element returns the element in the given section, adding it when the
// section does not list it yet. A missing section is a validation error.
func (s *Survey) element(sectionID, elementID, name string) (*SurveyElement, error) {
	sec := s.Section(sectionID)
	if sec == nil {
		return nil, fmt.Errorf("%w: section %q is not part of survey %s", common.ErrValidation, sectionID, s.ID)
	}
	if el := sec.Element(elementID); el != nil {
		return el, nil
	}
	sec.Elements = append(sec.Elements, SurveyElement{ElementID: elementID, Name: name})
	return &sec.Elements[len(sec.Elements)-1], nil
}

// Component finds a component instance anywhere in the survey.
func (s *Survey) Component(id string) *InspectedComponent {
	for i := range s.Sections {
		for j := range s.Sections[i].Elements {
			el := &s.Sections[i].Elements[j]
			for k := range el.Components {
				if el.Components[k].ID == id {
					return &el.Components[k]
				}
			}
		}
	}
	return nil
}

// LocalComponentDefs flattens the per-element definitions.
func (s *Survey) LocalComponentDefs() []LocalComponentDef {
	var out []LocalComponentDef
	for _, sec := range s.Sections {
		for _, el := range sec.Elements {
			out = append(out, el.LocalComponentDefs...)
		}
	}
	return out
}

func (s *Survey) LocalConditionDefs() []LocalConditionDef {
	var out []LocalConditionDef
	for _, sec := range s.Sections {
		for _, el := range sec.Elements {
			out = append(out, el.LocalConditionDefs...)
		}
	}
	return out
}

func (c InspectedComponent) clone() InspectedComponent {
	out := c
	out.Images = append([]string(nil), c.Images...)
	out.Conditions = append([]Condition(nil), c.Conditions...)
	out.Costings = append([]Costing(nil), c.Costings...)
	return out
}

// Phrase presents a local condition definition alongside catalog phrases.
func (d LocalConditionDef) Phrase() Phrase {
	return Phrase{
		Meta:   models.Meta{ID: d.ID},
		Name:   d.Name,
		Phrase: d.Text,
		Type:   "condition",
	}
}
