// Package workflow drives an application through the origination pipeline:
// an ordered milestone state machine, per-milestone task instantiation with
// a dependency graph, and SLA tracking.
package workflow

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"lendgate/internal/domain"
)

//go:embed definitions.yaml
var definitionsYAML []byte

// Definitions is the immutable milestone and task template table, loaded once
// at process start and shared by reference.
type Definitions struct {
	milestones  map[domain.MilestoneCode]domain.Milestone
	ordered     []domain.Milestone
	templates   map[string]domain.TaskTemplate
	byMilestone map[domain.MilestoneCode][]domain.TaskTemplate
}

type definitionsFile struct {
	Milestones    []domain.Milestone    `yaml:"milestones"`
	TaskTemplates []domain.TaskTemplate `yaml:"taskTemplates"`
}

// LoadDefinitions parses and validates the embedded definition tables.
func LoadDefinitions() (*Definitions, error) {
	return parseDefinitions(definitionsYAML)
}

func parseDefinitions(raw []byte) (*Definitions, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse workflow definitions: %w", err)
	}

	d := &Definitions{
		milestones:  make(map[domain.MilestoneCode]domain.Milestone, len(file.Milestones)),
		templates:   make(map[string]domain.TaskTemplate, len(file.TaskTemplates)),
		byMilestone: make(map[domain.MilestoneCode][]domain.TaskTemplate),
	}

	orders := make(map[int]domain.MilestoneCode, len(file.Milestones))
	for _, m := range file.Milestones {
		if _, dup := d.milestones[m.Code]; dup {
			return nil, fmt.Errorf("duplicate milestone %s", m.Code)
		}
		if prev, dup := orders[m.Order]; dup {
			return nil, fmt.Errorf("milestones %s and %s share order %d", prev, m.Code, m.Order)
		}
		d.milestones[m.Code] = m
		orders[m.Order] = m.Code
	}

	for _, t := range file.TaskTemplates {
		if _, dup := d.templates[t.Code]; dup {
			return nil, fmt.Errorf("duplicate task template %s", t.Code)
		}
		if _, ok := d.milestones[t.TriggerMilestone]; !ok {
			return nil, fmt.Errorf("task template %s triggers on unknown milestone %s", t.Code, t.TriggerMilestone)
		}
		d.templates[t.Code] = t
	}

	// Cross-references are validated after both tables are indexed.
	for _, m := range file.Milestones {
		for _, p := range m.Prerequisites {
			switch p.Kind {
			case domain.PrereqMilestone:
				if _, ok := d.milestones[domain.MilestoneCode(p.Ref)]; !ok {
					return nil, fmt.Errorf("milestone %s requires unknown milestone %s", m.Code, p.Ref)
				}
			case domain.PrereqTask:
				if _, ok := d.templates[p.Ref]; !ok {
					return nil, fmt.Errorf("milestone %s requires unknown task %s", m.Code, p.Ref)
				}
			case domain.PrereqConditionCategory, domain.PrereqDataField, domain.PrereqDecision:
				// Checked against collaborators at runtime.
			default:
				return nil, fmt.Errorf("milestone %s has unknown prerequisite kind %q", m.Code, p.Kind)
			}
		}
	}
	for _, t := range file.TaskTemplates {
		for _, dep := range t.DependsOn {
			if _, ok := d.templates[dep]; !ok {
				return nil, fmt.Errorf("task template %s depends on unknown task %s", t.Code, dep)
			}
		}
		d.byMilestone[t.TriggerMilestone] = append(d.byMilestone[t.TriggerMilestone], t)
	}

	d.ordered = append(d.ordered, file.Milestones...)
	sort.Slice(d.ordered, func(i, j int) bool { return d.ordered[i].Order < d.ordered[j].Order })

	if len(d.ordered) == 0 {
		return nil, fmt.Errorf("workflow definitions contain no milestones")
	}
	return d, nil
}

// Milestone looks up a milestone definition by code.
func (d *Definitions) Milestone(code domain.MilestoneCode) (domain.Milestone, bool) {
	m, ok := d.milestones[code]
	return m, ok
}

// First returns the lowest-order milestone, where new applications start.
func (d *Definitions) First() domain.Milestone {
	return d.ordered[0]
}

// Next returns the next non-terminal milestone after code in pipeline order,
// or nil when code is the last one or terminal.
func (d *Definitions) Next(code domain.MilestoneCode) *domain.Milestone {
	current, ok := d.milestones[code]
	if !ok || current.Terminal {
		return nil
	}
	for _, m := range d.ordered {
		if m.Order > current.Order && !isException(m.Code) {
			next := m
			return &next
		}
	}
	return nil
}

// Pipeline returns every milestone in order, terminal exceptions last.
func (d *Definitions) Pipeline() []domain.Milestone {
	out := make([]domain.Milestone, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// Template looks up a task template by code.
func (d *Definitions) Template(code string) (domain.TaskTemplate, bool) {
	t, ok := d.templates[code]
	return t, ok
}

// TemplatesFor returns the task templates triggered by entering a milestone.
func (d *Definitions) TemplatesFor(code domain.MilestoneCode) []domain.TaskTemplate {
	return d.byMilestone[code]
}

func isException(code domain.MilestoneCode) bool {
	switch code {
	case domain.MilestoneSuspended, domain.MilestoneWithdrawn, domain.MilestoneDenied:
		return true
	default:
		return false
	}
}
