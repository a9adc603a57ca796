package hierarchy

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/gosti/internal/config"
	"github.com/dbsmedya/gosti/sti"
)

const fleetYAML = `
discriminator: cast_type
primary_key: id
types:
  - name: fleet.Car
    parent: fleet.Vehicle
    overrides: [describe]
    casts: {seats: int}
  - name: fleet.Vehicle
    methods: [describe, wheels]
    casts: {wheels: int}
  - name: fleet.SportsCar
    parent: fleet.Car
    casts: {wheels: float}
  - name: fleet.Truck
    parent: fleet.Vehicle
    overrides: [wheels]
    scope: none
  - name: fleet.Bus
    parent: fleet.Vehicle
    table: buses
`

func loadHierarchy(t *testing.T, doc string) *config.HierarchyConfig {
	t.Helper()
	var cfg config.HierarchyConfig
	require.NoError(t, yaml.Unmarshal([]byte(doc), &cfg))
	return &cfg
}

type SportsCar struct{ sti.Model }

func TestBuild(t *testing.T) {
	tree, err := Build(loadHierarchy(t, fleetYAML))
	require.NoError(t, err)

	assert.Equal(t, "fleet.Vehicle", tree.Root)
	assert.Equal(t, 5, tree.NodeCount())
	assert.True(t, tree.GetNode("fleet.Vehicle").IsRoot)
	assert.False(t, tree.GetNode("fleet.Car").IsRoot)
	assert.Equal(t, []string{"fleet.Bus", "fleet.Car", "fleet.Truck"}, tree.GetChildren("fleet.Vehicle"))
	assert.Equal(t, []string{"fleet.Bus", "fleet.SportsCar", "fleet.Truck"}, tree.LeafNodes())
	assert.Equal(t, 2, tree.Depth("fleet.SportsCar"))
	assert.Equal(t, 0, tree.Depth("fleet.Vehicle"))
	assert.Equal(t, sti.ScopeNone, tree.GetNode("fleet.Truck").Scope)
}

func TestTopologicalSort_ParentsFirst(t *testing.T) {
	tree, err := Build(loadHierarchy(t, fleetYAML))
	require.NoError(t, err)

	order, err := tree.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"fleet.Vehicle", "fleet.Bus", "fleet.Car", "fleet.Truck", "fleet.SportsCar"}, order)
}

func TestBuild_HierarchyTableGoesToRoot(t *testing.T) {
	cfg := loadHierarchy(t, fleetYAML)
	cfg.Table = "fleet_vehicles"

	tree, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, "fleet_vehicles", tree.GetNode("fleet.Vehicle").Table)
	assert.Equal(t, "buses", tree.GetNode("fleet.Bus").Table)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		types  []config.TypeConfig
		target error
		msg    string
	}{
		{name: "empty", target: ErrNoRoot},
		{
			name:   "multiple roots",
			types:  []config.TypeConfig{{Name: "A"}, {Name: "B"}},
			target: ErrMultipleRoots,
			msg:    "A, B",
		},
		{
			name:   "orphan",
			types:  []config.TypeConfig{{Name: "A"}, {Name: "B", Parent: "Z"}},
			target: ErrOrphanType,
			msg:    `"Z"`,
		},
		{
			name:   "cycle without root",
			types:  []config.TypeConfig{{Name: "A", Parent: "B"}, {Name: "B", Parent: "A"}},
			target: ErrCycleDetected,
			msg:    "Cycle path: A -> B -> A",
		},
		{
			name: "cycle beside root",
			types: []config.TypeConfig{
				{Name: "Root"}, {Name: "A", Parent: "C"}, {Name: "B", Parent: "A"}, {Name: "C", Parent: "B"}, {Name: "D", Parent: "C"},
			},
			target: ErrCycleDetected,
			msg:    "Types blocked by cycle: D",
		},
		{
			name:  "duplicate",
			types: []config.TypeConfig{{Name: "A"}, {Name: "A"}},
			msg:   "declared more than once",
		},
		{
			name:  "bad scope",
			types: []config.TypeConfig{{Name: "A", Scope: "subtree"}},
			msg:   "unknown scope mode",
		},
		{
			name:  "empty name",
			types: []config.TypeConfig{{Name: ""}},
			msg:   "type name is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(&config.HierarchyConfig{Types: tt.types})
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestCycleError_Info(t *testing.T) {
	tree := NewTree()
	tree.AddNode(&Node{Name: "Root"})
	tree.AddNode(&Node{Name: "A", Parent: "B"})
	tree.AddNode(&Node{Name: "B", Parent: "A"})
	tree.AddEdge("B", "A")
	tree.AddEdge("A", "B")

	err := tree.Validate()
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, 3, cycleErr.Info.TotalNodes)
	assert.Equal(t, 1, cycleErr.Info.ProcessedNodes)
	assert.Equal(t, []string{"A", "B"}, cycleErr.Info.CycleParticipants)
	assert.Equal(t, []string{"A", "B", "A"}, cycleErr.Info.CyclePath)
}

func TestNewRegistry(t *testing.T) {
	reg, tree, err := NewRegistry(loadHierarchy(t, fleetYAML), Factories{
		"fleet.SportsCar": func() sti.Record { return &SportsCar{} },
	})
	require.NoError(t, err)
	require.NotNil(t, tree)

	assert.Equal(t, "fleet.Vehicle", reg.Root())
	assert.Equal(t, []string{"fleet.Car", "fleet.Vehicle"}, reg.Ancestors("fleet.SportsCar"))

	rec, err := reg.New("fleet.SportsCar")
	require.NoError(t, err)
	assert.IsType(t, &SportsCar{}, rec)
	assert.Equal(t, map[string]string{"seats": "int", "wheels": "float"}, rec.Casts())

	name, ok := reg.NameOf(&SportsCar{})
	assert.True(t, ok)
	assert.Equal(t, "fleet.SportsCar", name)

	truck, err := reg.New("fleet.Truck")
	require.NoError(t, err)
	assert.IsType(t, &sti.Dynamic{}, truck)

	def, ok := reg.Lookup("fleet.Car")
	require.True(t, ok)
	assert.Equal(t, []string{"describe"}, def.Overrides)
}

func TestNewRegistry_UnknownFactory(t *testing.T) {
	_, _, err := NewRegistry(loadHierarchy(t, fleetYAML), Factories{
		"fleet.Boat": func() sti.Record { return &sti.Dynamic{} },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fleet.Boat")
}

func TestNewRegistry_ResolverBehaviour(t *testing.T) {
	reg, _, err := NewRegistry(loadHierarchy(t, fleetYAML), nil)
	require.NoError(t, err)
	r := sti.NewResolver(reg)

	assert.False(t, r.Scoped("fleet.Vehicle"))
	assert.True(t, r.Scoped("fleet.Car"))
	assert.False(t, r.Scoped("fleet.Truck"))

	car, err := reg.New("fleet.Car")
	require.NoError(t, err)
	overrides, err := r.CastOverrides(car, "describe")
	require.NoError(t, err)
	assert.True(t, overrides)

	overrides, err = r.CastOverrides(car, "wheels")
	require.NoError(t, err)
	assert.False(t, overrides)

	_, err = r.CastOverrides(car, "fly")
	assert.ErrorIs(t, err, sti.ErrMethodNotFound)
}

func TestRender(t *testing.T) {
	reg, tree, err := NewRegistry(loadHierarchy(t, fleetYAML), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tree.Render(&buf, sti.NewResolver(reg), RenderOptions{}))

	expected := strings.Join([]string{
		"fleet.Vehicle            vehicles  unscoped  casts=wheels:int  methods=describe,wheels",
		"├── fleet.Bus            buses     scoped    casts=wheels:int",
		"├── fleet.Car            vehicles  scoped    casts=seats:int,wheels:int  overrides=describe",
		"│   └── fleet.SportsCar  vehicles  scoped    casts=seats:int,wheels:float",
		"└── fleet.Truck          vehicles  unscoped  casts=wheels:int  overrides=wheels",
	}, "\n") + "\n"
	assert.Equal(t, expected, buf.String())
}

func TestRender_NoRoot(t *testing.T) {
	var buf bytes.Buffer
	err := NewTree().Render(&buf, sti.NewResolver(sti.NewRegistry()), RenderOptions{})
	assert.Error(t, err)
}
