package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

func buildCounterWorld(t *testing.T, n int) (store.World, []foundation.EntityID) {
	t.Helper()
	w := store.NewWorld()
	w = w.RegisterComponent(store.ComponentSchema{
		Name:   "counter",
		Fields: map[string]store.TypeSpec{"value": {Kind: foundation.KindInt}},
	})
	var ids []foundation.EntityID
	for i := 0; i < n; i++ {
		var e foundation.EntityID
		e, w = w.Spawn()
		var err error
		w, err = w.SetComponent(e, "counter", foundation.NewMap().Set(foundation.Keyword("value"), foundation.Int(int64(i))))
		require.NoError(t, err)
		ids = append(ids, e)
	}
	return w, ids
}

func TestCompileRejectsUnboundNegation(t *testing.T) {
	_, err := Compile(Pattern{
		Clauses: []Clause{
			Negated{Inner: ComponentClause{EntityVar: "e", Component: "done"}},
		},
	})
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrUnboundNegation, kind)
}

func TestMatchBindsFieldsAndIsDeterministic(t *testing.T) {
	w, ids := buildCounterWorld(t, 3)
	cp, err := Compile(Pattern{
		Clauses: []Clause{
			ComponentClause{EntityVar: "e", Component: "counter", Fields: map[string]FieldTerm{"value": BindTerm("v")}},
		},
	})
	require.NoError(t, err)

	results := cp.Match(w)
	require.Len(t, results, 3)
	for i, r := range results {
		e, _ := r["e"].Entity()
		require.Equal(t, ids[i], e)
		v, _ := r["v"].Int()
		require.Equal(t, int64(i), v)
	}
}

func TestMatchNegationExcludesTagged(t *testing.T) {
	w, ids := buildCounterWorld(t, 2)
	w = w.RegisterComponent(store.ComponentSchema{Name: "done", Fields: map[string]store.TypeSpec{}})
	var err error
	w, err = w.SetComponent(ids[0], "done", foundation.NewMap())
	require.NoError(t, err)

	cp, err := Compile(Pattern{
		Clauses: []Clause{
			ComponentClause{EntityVar: "e", Component: "counter"},
			Negated{Inner: ComponentClause{EntityVar: "e", Component: "done"}},
		},
	})
	require.NoError(t, err)

	results := cp.Match(w)
	require.Len(t, results, 1)
	e, _ := results[0]["e"].Entity()
	require.Equal(t, ids[1], e)
}

func TestMatchDeduplicatesBindingSets(t *testing.T) {
	w := store.NewWorld()
	w = w.RegisterRelationship(store.RelationshipSchema{Name: "knows", Cardinality: store.ManyToMany})
	w = w.RegisterComponent(store.ComponentSchema{Name: "person", Fields: map[string]store.TypeSpec{}})
	a, w := w.Spawn()
	b, w := w.Spawn()
	var err error
	w, err = w.SetComponent(a, "person", foundation.NewMap())
	require.NoError(t, err)
	w, err = w.SetComponent(b, "person", foundation.NewMap())
	require.NoError(t, err)
	w, err = w.Link(a, b, "knows")
	require.NoError(t, err)

	cp, err := Compile(Pattern{
		Clauses: []Clause{
			ComponentClause{EntityVar: "x", Component: "person"},
			RelationshipClause{From: "x", Rel: "knows", To: "y"},
		},
	})
	require.NoError(t, err)

	results := cp.Match(w)
	require.Len(t, results, 1)
}

func TestMatchLiteralFieldTerm(t *testing.T) {
	w, ids := buildCounterWorld(t, 3)
	cp, err := Compile(Pattern{
		Clauses: []Clause{
			ComponentClause{EntityVar: "e", Component: "counter", Fields: map[string]FieldTerm{"value": LitTerm(foundation.Int(1))}},
		},
	})
	require.NoError(t, err)

	results := cp.Match(w)
	require.Len(t, results, 1)
	e, _ := results[0]["e"].Entity()
	require.Equal(t, ids[1], e)
}

func TestBindingsHashStableUnderKeyOrder(t *testing.T) {
	b1 := Bindings{"a": foundation.Int(1), "b": foundation.Int(2)}
	b2 := Bindings{"b": foundation.Int(2), "a": foundation.Int(1)}
	require.Equal(t, b1.Hash(), b2.Hash())
}
