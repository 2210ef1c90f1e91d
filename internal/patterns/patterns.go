// Package patterns holds the identifier pattern library: the 18 built-in
// HIPAA categories, custom categories from configuration, and the compiled
// regular expressions the rule detector runs. A Library is a mutable
// builder; detection always runs against an immutable Snapshot so reloads
// can swap the whole table atomically.
package patterns

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/fredhutch/phiscan/internal/models"
)

// DefaultCustomPriority is assigned to custom categories that do not
// configure their own priority.
const DefaultCustomPriority = 50

// Validator post-checks a regex match before it becomes an occurrence.
type Validator func(match string) bool

// Def is a pattern definition as it appears in configuration or the
// pattern store.
type Def struct {
	Category        string `yaml:"category" json:"category"`
	Pattern         string `yaml:"pattern" json:"pattern"`
	Priority        int    `yaml:"priority,omitempty" json:"priority,omitempty"`
	ContextPattern  string `yaml:"context_pattern,omitempty" json:"context_pattern,omitempty"`
	ContextRequired bool   `yaml:"context_required,omitempty" json:"context_required,omitempty"`
	Validator       string `yaml:"validator,omitempty" json:"validator,omitempty"`
}

// CategoryDef configures a custom category or overrides a built-in one.
type CategoryDef struct {
	Name       string `yaml:"name" json:"name"`
	Priority   int    `yaml:"priority,omitempty" json:"priority,omitempty"`
	RiskWeight int    `yaml:"risk_weight,omitempty" json:"risk_weight,omitempty"`
}

// Pattern is one compiled matcher. Patterns for a category keep their
// registration order.
type Pattern struct {
	Category        models.IdentifierCategory
	Expr            string
	Priority        int
	Regexp          *regexp.Regexp
	Context         *regexp.Regexp
	ContextRequired bool
	Validator       Validator

	contextExpr   string
	validatorName string
}

// CategoryInfo carries the per-category fusion priority and risk weight.
type CategoryInfo struct {
	Priority   int
	RiskWeight int
}

// CompileError reports a pattern that failed to compile at load time.
type CompileError struct {
	Category string
	Pattern  string
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling pattern %q for category %s: %v", e.Pattern, e.Category, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// DuplicateError reports re-registration of an existing category+pattern
// pair with different settings. Re-registering an identical definition is
// a no-op, so config reloads can replay the full pattern list.
type DuplicateError struct {
	Category string
	Pattern  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("pattern %q already registered for category %s with different settings", e.Pattern, e.Category)
}

// UnknownValidatorError reports a Def naming a validator that does not exist.
type UnknownValidatorError struct {
	Name string
}

func (e *UnknownValidatorError) Error() string {
	return fmt.Sprintf("unknown validator %q", e.Name)
}

// Library accumulates category and pattern registrations. Safe for
// concurrent use, though registration normally happens once at load.
type Library struct {
	mu         sync.Mutex
	categories map[models.IdentifierCategory]CategoryInfo
	patterns   map[models.IdentifierCategory][]*Pattern
	catOrder   []models.IdentifierCategory
}

// NewLibrary returns a library pre-seeded with the built-in categories
// and their default patterns.
func NewLibrary() (*Library, error) {
	l := Empty()
	for _, c := range builtinCategories {
		l.RegisterCategory(c.name, c.priority, c.riskWeight)
	}
	for _, def := range builtinDefs {
		if err := l.Register(def); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Empty returns a library with no categories registered. Tests and
// single-category tools start here.
func Empty() *Library {
	return &Library{
		categories: make(map[models.IdentifierCategory]CategoryInfo),
		patterns:   make(map[models.IdentifierCategory][]*Pattern),
	}
}

// RegisterCategory adds or overrides a category. Priority and weight
// fall back to defaults when zero.
func (l *Library) RegisterCategory(name models.IdentifierCategory, priority, riskWeight int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if priority == 0 {
		priority = DefaultCustomPriority
	}
	if riskWeight == 0 {
		riskWeight = 1
	}
	if _, ok := l.categories[name]; !ok {
		l.catOrder = append(l.catOrder, name)
	}
	l.categories[name] = CategoryInfo{Priority: priority, RiskWeight: riskWeight}
}

// Register compiles and adds one pattern definition. Unknown categories
// are registered implicitly with default priority and weight. Identical
// re-registration is a no-op; a conflicting one returns *DuplicateError,
// and an uncompilable pattern returns *CompileError.
func (l *Library) Register(def Def) error {
	cat := models.IdentifierCategory(def.Category)

	re, err := regexp.Compile(def.Pattern)
	if err != nil {
		return &CompileError{Category: def.Category, Pattern: def.Pattern, Err: err}
	}

	var ctxRe *regexp.Regexp
	if def.ContextPattern != "" {
		ctxRe, err = regexp.Compile(def.ContextPattern)
		if err != nil {
			return &CompileError{Category: def.Category, Pattern: def.ContextPattern, Err: err}
		}
	}

	var validator Validator
	if def.Validator != "" {
		validator = namedValidators[def.Validator]
		if validator == nil {
			return &UnknownValidatorError{Name: def.Validator}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.categories[cat]
	if !ok {
		info = CategoryInfo{Priority: DefaultCustomPriority, RiskWeight: 1}
		l.categories[cat] = info
		l.catOrder = append(l.catOrder, cat)
	}

	priority := def.Priority
	if priority == 0 {
		priority = info.Priority
	}

	for _, existing := range l.patterns[cat] {
		if existing.Expr != def.Pattern {
			continue
		}
		same := existing.Priority == priority &&
			existing.contextExpr == def.ContextPattern &&
			existing.ContextRequired == def.ContextRequired &&
			existing.validatorName == def.Validator
		if same {
			return nil
		}
		return &DuplicateError{Category: def.Category, Pattern: def.Pattern}
	}

	l.patterns[cat] = append(l.patterns[cat], &Pattern{
		Category:        cat,
		Expr:            def.Pattern,
		Priority:        priority,
		Regexp:          re,
		Context:         ctxRe,
		ContextRequired: def.ContextRequired,
		Validator:       validator,
		contextExpr:     def.ContextPattern,
		validatorName:   def.Validator,
	})
	return nil
}

// RegisterAll replays a list of definitions, stopping at the first error.
func (l *Library) RegisterAll(defs []Def) error {
	for _, def := range defs {
		if err := l.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot freezes the library's current contents. The returned value is
// never mutated; callers share it freely across goroutines.
func (l *Library) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &Snapshot{
		categories: make(map[models.IdentifierCategory]CategoryInfo, len(l.categories)),
		byCategory: make(map[models.IdentifierCategory][]*Pattern, len(l.patterns)),
	}
	for cat, info := range l.categories {
		snap.categories[cat] = info
	}
	for _, cat := range l.catOrder {
		ps := make([]*Pattern, len(l.patterns[cat]))
		copy(ps, l.patterns[cat])
		snap.byCategory[cat] = ps
		snap.all = append(snap.all, ps...)
	}
	return snap
}

// Snapshot is an immutable view of a library.
type Snapshot struct {
	categories map[models.IdentifierCategory]CategoryInfo
	byCategory map[models.IdentifierCategory][]*Pattern
	all        []*Pattern
}

// All returns every pattern in category registration order, then pattern
// registration order within a category.
func (s *Snapshot) All() []*Pattern { return s.all }

// For returns the patterns registered for one category.
func (s *Snapshot) For(cat models.IdentifierCategory) []*Pattern {
	return s.byCategory[cat]
}

// CategoryPriority returns the fusion priority for a category. Unknown
// categories get the custom default so model-sourced spans in unseen
// categories still order deterministically.
func (s *Snapshot) CategoryPriority(cat models.IdentifierCategory) int {
	if info, ok := s.categories[cat]; ok {
		return info.Priority
	}
	return DefaultCustomPriority
}

// RiskWeight returns the scoring weight for a category, default 1.
func (s *Snapshot) RiskWeight(cat models.IdentifierCategory) int {
	if info, ok := s.categories[cat]; ok {
		return info.RiskWeight
	}
	return 1
}

// Categories returns the registered category names.
func (s *Snapshot) Categories() []models.IdentifierCategory {
	cats := make([]models.IdentifierCategory, 0, len(s.categories))
	for cat := range s.categories {
		cats = append(cats, cat)
	}
	return cats
}
