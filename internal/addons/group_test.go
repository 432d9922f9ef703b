package addons

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledCount(nodes []Node) int {
	n := 0
	for _, c := range nodes {
		if c.Enabled() {
			n++
		}
	}
	return n
}

func TestSingleStrategyEnablingAnotherChild(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "Weapons")
	g.SetEnableStrategy(StrategySingle)
	x := mkPlain(t, r, g, "X")
	y := mkPlain(t, r, g, "Y")
	z := mkPlain(t, r, g, "Z")

	x.SetEnabled(true)
	require.True(t, x.Enabled())
	assert.True(t, g.Enabled(), "enabling a child enables its single group")

	y.SetEnabled(true)
	assert.False(t, x.Enabled())
	assert.True(t, y.Enabled())
	assert.False(t, z.Enabled())
	assert.False(t, hasProblemKind(g, ProblemEnableStrategy))
	assert.False(t, g.HasProblem())
}

func TestSingleStrategyKeepsAtMostOneChild(t *testing.T) {
	for _, strategy := range []EnableStrategy{StrategySingle, StrategySingleRandom} {
		t.Run(strategy.String(), func(t *testing.T) {
			r, _ := newTestRoot(t, RootOptions{})
			g := mkGroup(t, r, nil, "Maps")
			g.SetEnableStrategy(strategy)
			for _, name := range []string{"a", "b", "c", "d"} {
				mkPlain(t, r, g, name)
			}

			rng := rand.New(rand.NewPCG(1, 2))
			children := g.Nodes()
			for i := 0; i < 200; i++ {
				switch rng.IntN(3) {
				case 0:
					g.SetEnabled(rng.IntN(2) == 0)
				default:
					children[rng.IntN(len(children))].SetEnabled(rng.IntN(2) == 0)
				}
				require.LessOrEqual(t, enabledCount(children), 1, "step %d", i)
			}
		})
	}
}

func TestAllStrategyKeepsFlagsEqual(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "Campaign")
	g.SetEnableStrategy(StrategyAll)
	for _, name := range []string{"a", "b", "c"} {
		mkPlain(t, r, g, name)
	}

	check := func(step int) {
		t.Helper()
		children := g.Nodes()
		n := enabledCount(children)
		if g.Enabled() {
			n++
		}
		require.True(t, n == 0 || n == len(children)+1, "step %d: %d of %d enabled", step, n, len(children)+1)
	}

	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 200; i++ {
		children := g.Nodes()
		switch rng.IntN(4) {
		case 0:
			g.SetEnabled(rng.IntN(2) == 0)
		case 1:
			if len(children) < 8 {
				mkPlain(t, r, g, g.UniqueName("new"))
			}
		default:
			children[rng.IntN(len(children))].SetEnabled(rng.IntN(2) == 0)
		}
		check(i)
	}
}

func TestAllStrategyNewChildAdoptsGroupFlag(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "Campaign")
	g.SetEnableStrategy(StrategyAll)
	g.SetEnabled(true)

	n := mkPlain(t, r, g, "late")
	assert.True(t, n.Enabled())
	assert.True(t, n.EnabledInHierarchy())
}

func TestSetEnableStrategyReportsAndRepairs(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		r, _ := newTestRoot(t, RootOptions{})
		g := mkGroup(t, r, nil, "Skins")
		a := mkPlain(t, r, g, "a")
		b := mkPlain(t, r, g, "b")
		a.SetEnabled(true)
		b.SetEnabled(true)

		g.SetEnableStrategy(StrategySingle)
		require.True(t, hasProblemKind(g, ProblemEnableStrategy))

		var solver Solver
		for _, p := range g.Problems() {
			if s, ok := p.(Solver); ok {
				solver = s
			}
		}
		require.NotNil(t, solver)
		assert.True(t, solver.TrySolve())
		assert.False(t, a.Enabled())
		assert.False(t, b.Enabled())
		assert.False(t, hasProblemKind(g, ProblemEnableStrategy))
	})

	t.Run("all", func(t *testing.T) {
		r, _ := newTestRoot(t, RootOptions{})
		g := mkGroup(t, r, nil, "Skins")
		a := mkPlain(t, r, g, "a")
		b := mkPlain(t, r, g, "b")
		g.SetEnabled(true)
		a.SetEnabled(true)

		g.SetEnableStrategy(StrategyAll)
		require.True(t, hasProblemKind(g, ProblemEnableStrategy))
		assert.Equal(t, "enabled children do not match the all strategy", g.Problems()[0].Message())

		assert.True(t, g.repairEnableStrategy())
		assert.True(t, g.Enabled())
		assert.True(t, a.Enabled())
		assert.True(t, b.Enabled())
		assert.False(t, g.HasProblem())
	})
}

func TestEnableRandomChild(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "Music")
	for _, name := range []string{"a", "b", "c"} {
		mkPlain(t, r, g, name)
	}

	assert.False(t, g.EnableRandomChild(), "only single-random groups pick a child")

	g.SetEnableStrategy(StrategySingleRandom)
	for i := 0; i < 20; i++ {
		require.True(t, g.EnableRandomChild())
		assert.Equal(t, 1, enabledCount(g.Nodes()))
		assert.True(t, g.Enabled())
	}

	empty := mkGroup(t, r, nil, "Empty")
	empty.SetEnableStrategy(StrategySingleRandom)
	assert.False(t, empty.EnableRandomChild())
}

func TestParseEnableStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want EnableStrategy
	}{
		{"none", StrategyNone},
		{"", StrategyNone},
		{"Single", StrategySingle},
		{"single-random", StrategySingleRandom},
		{"random", StrategySingleRandom},
		{" all ", StrategyAll},
	}
	for _, tt := range tests {
		got, err := ParseEnableStrategy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		if tt.in != "" {
			back, err := ParseEnableStrategy(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, back)
		}
	}

	_, err := ParseEnableStrategy("most")
	assert.Error(t, err)
}

func TestChildrenProblemBubblesUp(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	outer := mkGroup(t, r, nil, "outer")
	inner := mkGroup(t, r, outer, "inner")
	a, err := NewLocalVpkAddon(r, inner, "missing")
	require.NoError(t, err)

	a.Check()
	assert.Equal(t, []ProblemKind{ProblemFileMissing}, problemKinds(a))
	assert.Equal(t, []ProblemKind{ProblemChildren}, problemKinds(inner))
	assert.Equal(t, []ProblemKind{ProblemChildren}, problemKinds(outer))

	// a second check must not stack another children problem
	a.Check()
	inner.Check()
	assert.Len(t, inner.Problems(), 1)

	writeVpk(t, r.fs, a.FullFilePath(), "found")
	a.Check()
	assert.False(t, a.HasProblem())
	assert.False(t, inner.HasProblem())
	assert.False(t, outer.HasProblem())

	size, ok := a.FileSize()
	assert.True(t, ok)
	assert.Positive(t, size)
}

func TestInvalidVpkProblem(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	a, err := NewLocalVpkAddon(r, nil, "broken")
	require.NoError(t, err)
	require.NoError(t, writeFile(r, a.FullFilePath(), "not a package"))

	a.Check()
	assert.Equal(t, []ProblemKind{ProblemInvalidVpk}, problemKinds(a))
}

func writeFile(r *Root, path, content string) error {
	f, err := r.fs.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteString(content)
	return err
}
