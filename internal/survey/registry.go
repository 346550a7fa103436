package survey

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/logging"
	"github.com/dmitrijs2005/fieldkeeper/internal/origin"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
)

// Surveys is the write side of the surveys table.
type Surveys interface {
	Update(ctx context.Context, id string, mutate func(*Survey) error) error
}

// Elements looks up catalog elements without triggering a sync.
type Elements interface {
	Peek(ctx context.Context, id string) (*Element, bool)
}

// ElementRef names the element a provisional item belongs to. SectionID is
// used only when the element is not in the local catalog yet.
type ElementRef struct {
	ElementID string
	SectionID string
}

// Registry creates provisional catalog items inside a survey document. They
// are never separate rows and never go through delta sync.
type Registry struct {
	surveys  Surveys
	elements Elements
	clock    timex.Clock
	logger   logging.Logger
}

type RegistryOption func(*Registry)

func WithClock(clock timex.Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

func WithLogger(l logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(surveys Surveys, elements Elements, opts ...RegistryOption) *Registry {
	r := &Registry{
		surveys:  surveys,
		elements: elements,
		clock:    timex.SystemClock,
		logger:   logging.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("module", "registry")
	return r
}

type placement struct {
	elementID   string
	sectionID   string
	elementName string
}

// resolve finds the owning section of ref.ElementID, preferring the catalog
// and falling back to the explicit section id.
func (r *Registry) resolve(ctx context.Context, ref ElementRef) (placement, error) {
	if ref.ElementID == "" {
		return placement{}, fmt.Errorf("%w: element id is required", common.ErrValidation)
	}
	p := placement{elementID: ref.ElementID}
	if r.elements != nil {
		if el, ok := r.elements.Peek(ctx, ref.ElementID); ok && el.SectionID != "" {
			p.sectionID = el.SectionID
			p.elementName = el.Name
			return p, nil
		}
	}
	if ref.SectionID == "" {
		return placement{}, fmt.Errorf("%w: cannot resolve section of element %q", common.ErrValidation, ref.ElementID)
	}
	p.sectionID = ref.SectionID
	return p, nil
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", common.ErrValidation, field)
	}
	return v, nil
}

// AddComponentDef records a new component type on the survey, under the
// element it was invented for.
func (r *Registry) AddComponentDef(ctx context.Context, surveyID string, ref ElementRef, name string) (LocalComponentDef, error) {
	name, err := required("name", name)
	if err != nil {
		return LocalComponentDef{}, err
	}
	p, err := r.resolve(ctx, ref)
	if err != nil {
		return LocalComponentDef{}, err
	}

	def := LocalComponentDef{
		ID:        origin.LocalComponentDef.NewID(),
		Name:      name,
		ElementID: p.elementID,
		SectionID: p.sectionID,
		CreatedAt: r.clock(),
	}
	err = r.surveys.Update(ctx, surveyID, func(s *Survey) error {
		el, err := s.element(p.sectionID, p.elementID, p.elementName)
		if err != nil {
			return err
		}
		el.LocalComponentDefs = append(el.LocalComponentDefs, def)
		return nil
	})
	if err != nil {
		return LocalComponentDef{}, err
	}
	r.logger.Info(ctx, "local component definition added", "survey", surveyID, "element", p.elementID, "id", def.ID)
	return def, nil
}

// AddConditionDef records a new condition phrase on the survey.
func (r *Registry) AddConditionDef(ctx context.Context, surveyID string, ref ElementRef, name, text string) (LocalConditionDef, error) {
	name, err := required("name", name)
	if err != nil {
		return LocalConditionDef{}, err
	}
	p, err := r.resolve(ctx, ref)
	if err != nil {
		return LocalConditionDef{}, err
	}

	def := LocalConditionDef{
		ID:        origin.LocalConditionDef.NewID(),
		Name:      name,
		Text:      strings.TrimSpace(text),
		ElementID: p.elementID,
		SectionID: p.sectionID,
		CreatedAt: r.clock(),
	}
	err = r.surveys.Update(ctx, surveyID, func(s *Survey) error {
		el, err := s.element(p.sectionID, p.elementID, p.elementName)
		if err != nil {
			return err
		}
		el.LocalConditionDefs = append(el.LocalConditionDefs, def)
		return nil
	})
	if err != nil {
		return LocalConditionDef{}, err
	}
	r.logger.Info(ctx, "local condition definition added", "survey", surveyID, "element", p.elementID, "id", def.ID)
	return def, nil
}

// InstantiateComponent adds a component instance to the element, copying
// the field values of base. The instance gets a fresh local_ id.
func (r *Registry) InstantiateComponent(ctx context.Context, surveyID string, ref ElementRef, base InspectedComponent) (InspectedComponent, error) {
	name, err := required("name", base.Name)
	if err != nil {
		return InspectedComponent{}, err
	}
	p, err := r.resolve(ctx, ref)
	if err != nil {
		return InspectedComponent{}, err
	}

	inst := base.clone()
	inst.ID = origin.LocalInstance.NewID()
	inst.Name = name
	err = r.surveys.Update(ctx, surveyID, func(s *Survey) error {
		el, err := s.element(p.sectionID, p.elementID, p.elementName)
		if err != nil {
			return err
		}
		el.Components = append(el.Components, inst.clone())
		return nil
	})
	if err != nil {
		return InspectedComponent{}, err
	}
	return inst, nil
}

// AddLocalComponent invents a component type and records an instance of it
// in a single survey update, so it shows up in the element right away.
func (r *Registry) AddLocalComponent(ctx context.Context, surveyID string, ref ElementRef, name string) (LocalComponentDef, InspectedComponent, error) {
	name, err := required("name", name)
	if err != nil {
		return LocalComponentDef{}, InspectedComponent{}, err
	}
	p, err := r.resolve(ctx, ref)
	if err != nil {
		return LocalComponentDef{}, InspectedComponent{}, err
	}

	def := LocalComponentDef{
		ID:        origin.LocalComponentDef.NewID(),
		Name:      name,
		ElementID: p.elementID,
		SectionID: p.sectionID,
		CreatedAt: r.clock(),
	}
	inst := InspectedComponent{
		ID:          origin.LocalInstance.NewID(),
		ComponentID: def.ID,
		Name:        name,
	}
	err = r.surveys.Update(ctx, surveyID, func(s *Survey) error {
		el, err := s.element(p.sectionID, p.elementID, p.elementName)
		if err != nil {
			return err
		}
		el.LocalComponentDefs = append(el.LocalComponentDefs, def)
		el.Components = append(el.Components, inst)
		return nil
	})
	if err != nil {
		return LocalComponentDef{}, InspectedComponent{}, err
	}
	r.logger.Info(ctx, "local component added", "survey", surveyID, "element", p.elementID, "def", def.ID, "instance", inst.ID)
	return def, inst, nil
}

// AddCondition records a condition instance on an existing component
// instance. base.PhraseID may name a catalog phrase or a locond_ definition.
func (r *Registry) AddCondition(ctx context.Context, surveyID, componentID string, base Condition) (Condition, error) {
	name, err := required("name", base.Name)
	if err != nil {
		return Condition{}, err
	}
	cond := base
	cond.ID = origin.LocalInstance.NewID()
	cond.Name = name
	err = r.surveys.Update(ctx, surveyID, func(s *Survey) error {
		c := s.Component(componentID)
		if c == nil {
			return fmt.Errorf("%w: component %q is not part of survey %s", common.ErrValidation, componentID, surveyID)
		}
		c.Conditions = append(c.Conditions, cond)
		return nil
	})
	if err != nil {
		return Condition{}, err
	}
	return cond, nil
}

// PhrasesFor returns the condition phrases to offer for the selected
// component. A provisional selection has no catalog id to match against, so
// every phrase is offered; a catalog component gets the phrases associated
// with it.
func PhrasesFor(selectedComponentID string, phrases []Phrase) []Phrase {
	if origin.IsProvisional(selectedComponentID) {
		return append([]Phrase(nil), phrases...)
	}
	var out []Phrase
	for _, p := range phrases {
		for _, id := range p.Components {
			if id == selectedComponentID {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
