// File path: internal/plan/plan.go
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Section keys of a project plan.
const (
	TitleSheet              = "title_sheet"
	RevisionHistory         = "revision_history"
	DefinitionsReferences   = "definitions_references"
	ProjectIntroduction     = "project_introduction"
	ResourcePlan            = "resource_plan"
	PMCObjectives           = "pmc_objectives"
	QualityManagement       = "quality_management"
	DARTailoring            = "dar_tailoring"
	RiskManagement          = "risk_management"
	OpportunityManagement   = "opportunity_management"
	ConfigurationManagement = "configuration_management"
	Deliverables            = "deliverables"
	SkillMatrix             = "skill_matrix"
	SupplierManagement      = "supplier_management"
)

var sectionNames = []string{
	TitleSheet,
	RevisionHistory,
	DefinitionsReferences,
	ProjectIntroduction,
	ResourcePlan,
	PMCObjectives,
	QualityManagement,
	DARTailoring,
	RiskManagement,
	OpportunityManagement,
	ConfigurationManagement,
	Deliverables,
	SkillMatrix,
	SupplierManagement,
}

// ErrUnknownSection is returned when a section key is not one of the fourteen
// plan sections.
var ErrUnknownSection = errors.New("unknown plan section")

// SectionNames returns the section keys in document order.
func SectionNames() []string {
	return append([]string(nil), sectionNames...)
}

// IsSection reports whether name is a plan section key.
func IsSection(name string) bool {
	for _, candidate := range sectionNames {
		if candidate == name {
			return true
		}
	}
	return false
}

// Section is a schema-less section payload. Values are JSON compatible:
// strings, json.Number or float64, bools, nil, nested maps and slices.
type Section map[string]any

// Plan is a persisted project plan.
type Plan struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TitleSheet              Section `json:"title_sheet"`
	RevisionHistory         Section `json:"revision_history"`
	DefinitionsReferences   Section `json:"definitions_references"`
	ProjectIntroduction     Section `json:"project_introduction"`
	ResourcePlan            Section `json:"resource_plan"`
	PMCObjectives           Section `json:"pmc_objectives"`
	QualityManagement       Section `json:"quality_management"`
	DARTailoring            Section `json:"dar_tailoring"`
	RiskManagement          Section `json:"risk_management"`
	OpportunityManagement   Section `json:"opportunity_management"`
	ConfigurationManagement Section `json:"configuration_management"`
	Deliverables            Section `json:"deliverables"`
	SkillMatrix             Section `json:"skill_matrix"`
	SupplierManagement      Section `json:"supplier_management"`
}

// New builds a plan with fresh identifiers, both timestamps set to now and
// every section empty.
func New(title string, now time.Time) *Plan {
	now = now.UTC()
	p := &Plan{
		ID:        NewID(),
		PlanID:    NewPlanID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.fillDefaults()
	return p
}

// Section returns the payload stored under name.
func (p *Plan) Section(name string) (Section, bool) {
	field := p.sectionField(name)
	if field == nil {
		return nil, false
	}
	if *field == nil {
		return Section{}, true
	}
	return *field, true
}

// SetSection replaces the payload stored under name. A nil section is stored
// as an empty one.
func (p *Plan) SetSection(name string, section Section) error {
	field := p.sectionField(name)
	if field == nil {
		return fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	if section == nil {
		section = Section{}
	}
	*field = section
	return nil
}

// Sections returns every section keyed by name.
func (p *Plan) Sections() map[string]Section {
	out := make(map[string]Section, len(sectionNames))
	for _, name := range sectionNames {
		section, _ := p.Section(name)
		out[name] = section
	}
	return out
}

// MarshalJSON encodes missing sections as empty objects rather than null.
func (p Plan) MarshalJSON() ([]byte, error) {
	type alias Plan
	p.fillDefaults()
	return json.Marshal(alias(p))
}

func (p *Plan) fillDefaults() {
	for _, name := range sectionNames {
		field := p.sectionField(name)
		if *field == nil {
			*field = Section{}
		}
	}
}

func (p *Plan) sectionField(name string) *Section {
	switch name {
	case TitleSheet:
		return &p.TitleSheet
	case RevisionHistory:
		return &p.RevisionHistory
	case DefinitionsReferences:
		return &p.DefinitionsReferences
	case ProjectIntroduction:
		return &p.ProjectIntroduction
	case ResourcePlan:
		return &p.ResourcePlan
	case PMCObjectives:
		return &p.PMCObjectives
	case QualityManagement:
		return &p.QualityManagement
	case DARTailoring:
		return &p.DARTailoring
	case RiskManagement:
		return &p.RiskManagement
	case OpportunityManagement:
		return &p.OpportunityManagement
	case ConfigurationManagement:
		return &p.ConfigurationManagement
	case Deliverables:
		return &p.Deliverables
	case SkillMatrix:
		return &p.SkillMatrix
	case SupplierManagement:
		return &p.SupplierManagement
	default:
		return nil
	}
}
