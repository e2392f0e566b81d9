package rule

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/infra/metrics"
	"github.com/longtable/longtable/internal/infra/observer"
	"github.com/longtable/longtable/internal/pattern"
	"github.com/longtable/longtable/internal/store"
)

// Activation is a matched (rule, bindings) pair eligible to fire.
type Activation struct {
	Rule     *CompiledRule
	Bindings pattern.Bindings
}

type refractionKey struct {
	rule string
	hash uint64
}

func (a Activation) key() refractionKey {
	return refractionKey{rule: a.Rule.Name, hash: a.Bindings.Hash()}
}

// Fired records one activation that actually fired during a run, for the
// tick executor's provenance recording and derived-cache invalidation.
type Fired struct {
	Rule     string
	Bindings pattern.Bindings
	Effects  []effectvm.Effect
	Writes   []effectvm.Write
}

// Engine runs a fixed set of registered rules to quiescence against a
// World, one tick at a time. It holds no World state itself; every call to
// RunToQuiescence is independent.
type Engine struct {
	rules    []*CompiledRule
	vm       *effectvm.VM
	maxFires int

	metrics *metrics.Collector
	hub     *observer.Hub
	branch  string
}

// NewEngine builds an Engine that evaluates guard/body expressions with vm
// and bounds a single run to maxFires total activations (spec.md's
// SemanticLimit::MaxRuleFires). A non-positive maxFires is replaced with a
// conservative default. mc and hub are optional (nil-safe) collaborators:
// when set, every fire is recorded on mc and broadcast on hub.
func NewEngine(vm *effectvm.VM, maxFires int, mc *metrics.Collector, hub *observer.Hub) *Engine {
	if maxFires <= 0 {
		maxFires = 10_000
	}
	return &Engine{vm: vm, maxFires: maxFires, metrics: mc, hub: hub}
}

// SetBranch sets the branch name attached to events this Engine broadcasts
// on hub, so subscribers can tell which timeline branch a rule fired on.
func (e *Engine) SetBranch(branch string) {
	e.branch = branch
}

// Register adds a compiled rule, assigning it the next stable registration
// order (used to break salience ties).
func (e *Engine) Register(r *CompiledRule) {
	r.Order = len(e.rules)
	e.rules = append(e.rules, r)
}

// Rules returns every registered rule in registration order.
func (e *Engine) Rules() []*CompiledRule {
	return e.rules
}

// RunToQuiescence repeatedly re-matches every registered rule against w,
// selects the highest-salience not-yet-refracted activation, fires it by
// evaluating its effects and applying them, and repeats until no
// activation remains outside refraction (quiescence) or MaxRuleFires is
// exceeded.
func (e *Engine) RunToQuiescence(w store.World) (store.World, []Fired, error) {
	firedSet := map[refractionKey]bool{}
	onceFired := map[string]bool{}
	var history []Fired
	fires := 0

	for {
		activations, err := e.computeActivations(w, onceFired)
		if err != nil {
			return w, history, err
		}

		pending := activations[:0:0]
		for _, a := range activations {
			if !firedSet[a.key()] {
				pending = append(pending, a)
			}
		}
		if len(pending) == 0 {
			return w, history, nil
		}

		sortActivations(pending)
		chosen := pending[0]

		fires++
		if fires > e.maxFires {
			if e.metrics != nil {
				e.metrics.RecordQuiescenceOverrun(chosen.Rule.Name)
			}
			return w, history, foundation.NewErrorf(foundation.ErrQuiescenceExceeded,
				"exceeded MaxRuleFires=%d without reaching quiescence", e.maxFires)
		}

		effects, err := e.buildEffects(chosen)
		if err != nil {
			return w, history, err
		}

		vars := map[string]foundation.Value{}
		for k, v := range chosen.Bindings {
			vars[k] = v
		}
		nw, writes, err := effectvm.ApplyAll(w, vars, effects)
		if err != nil {
			return w, history, foundation.NewErrorf(foundation.ErrEffectFailed,
				"rule %q: %v", chosen.Rule.Name, err).WithCause(err)
		}

		w = nw
		firedSet[chosen.key()] = true
		if chosen.Rule.Once {
			onceFired[chosen.Rule.Name] = true
		}
		history = append(history, Fired{
			Rule:     chosen.Rule.Name,
			Bindings: chosen.Bindings,
			Effects:  effects,
			Writes:   writes,
		})

		if e.metrics != nil {
			e.metrics.RecordFire(chosen.Rule.Name)
		}
		if e.hub != nil {
			e.hub.Broadcast(e.branch, &observer.Event{
				Type:   observer.EventRuleFired,
				Branch: e.branch,
				TickID: w.Tick,
				Detail: chosen.Rule.Name,
			})
		}

		log.Debug().Str("rule", chosen.Rule.Name).Int("fire", fires).Int("salience", chosen.Rule.Salience).Msg("rule fired")
	}
}

func (e *Engine) computeActivations(w store.World, onceFired map[string]bool) ([]Activation, error) {
	var out []Activation
	for _, r := range e.rules {
		if r.Once && onceFired[r.Name] {
			continue
		}
		for _, b := range r.Pattern.Match(w) {
			if r.Guard != "" {
				ok, err := e.vm.EvalBool(r.Guard, b.Env())
				if err != nil {
					return nil, foundation.NewErrorf(foundation.ErrVMError, "rule %q guard: %v", r.Name, err).WithCause(err)
				}
				if !ok {
					continue
				}
			}
			out = append(out, Activation{Rule: r, Bindings: b})
		}
	}
	return out, nil
}

func sortActivations(acts []Activation) {
	sort.SliceStable(acts, func(i, j int) bool {
		a, b := acts[i], acts[j]
		if a.Rule.Salience != b.Rule.Salience {
			return a.Rule.Salience > b.Rule.Salience
		}
		if a.Rule.Order != b.Rule.Order {
			return a.Rule.Order < b.Rule.Order
		}
		return a.Bindings.Hash() < b.Bindings.Hash()
	})
}

func (e *Engine) buildEffects(a Activation) ([]effectvm.Effect, error) {
	env := a.Bindings.Env()
	out := make([]effectvm.Effect, 0, len(a.Rule.Effects))
	for _, spec := range a.Rule.Effects {
		eff, err := e.instantiate(spec, env)
		if err != nil {
			return nil, err
		}
		out = append(out, eff)
	}
	return out, nil
}

func (e *Engine) instantiate(spec EffectSpec, env map[string]any) (effectvm.Effect, error) {
	switch spec.Kind {
	case effectvm.EffectSet:
		fields, err := e.evalFieldMap(spec.Fields, env)
		if err != nil {
			return effectvm.Effect{}, err
		}
		return effectvm.Set(spec.EntityVar, spec.Component, foundation.MapValue(fields)), nil

	case effectvm.EffectSetField:
		val, err := e.evalExpr(spec.ValueExpr, env)
		if err != nil {
			return effectvm.Effect{}, err
		}
		return effectvm.SetField(spec.EntityVar, spec.Component, spec.Field, val), nil

	case effectvm.EffectRemove:
		return effectvm.Remove(spec.EntityVar, spec.Component), nil

	case effectvm.EffectSpawn:
		compMap := foundation.NewMap()
		for comp, fields := range spec.SpawnComponents {
			fm, err := e.evalFieldMap(fields, env)
			if err != nil {
				return effectvm.Effect{}, err
			}
			compMap = compMap.Set(foundation.Keyword(comp), foundation.MapValue(fm))
		}
		return effectvm.Spawn(spec.EntityVar, foundation.MapValue(compMap)), nil

	case effectvm.EffectDestroy:
		return effectvm.Destroy(spec.EntityVar), nil

	case effectvm.EffectLink:
		return effectvm.Link(spec.EntityVar, spec.OtherVar, spec.Relationship), nil

	case effectvm.EffectUnlink:
		return effectvm.Unlink(spec.EntityVar, spec.OtherVar, spec.Relationship), nil

	case effectvm.EffectTag:
		return effectvm.Tag(spec.EntityVar, spec.Tag), nil

	default:
		return effectvm.Effect{}, foundation.NewErrorf(foundation.ErrEffectFailed, "unknown effect kind %v", spec.Kind)
	}
}

func (e *Engine) evalFieldMap(fields map[string]string, env map[string]any) (foundation.Map, error) {
	m := foundation.NewMap()
	for field, expr := range fields {
		val, err := e.evalExpr(expr, env)
		if err != nil {
			return m, err
		}
		m = m.Set(foundation.Keyword(field), val)
	}
	return m, nil
}

func (e *Engine) evalExpr(src string, env map[string]any) (foundation.Value, error) {
	res, err := e.vm.Eval(src, env)
	if err != nil {
		return foundation.Value{}, foundation.NewErrorf(foundation.ErrVMError, "effect expression %q: %v", src, err).WithCause(err)
	}
	return foundation.FromNative(res), nil
}
