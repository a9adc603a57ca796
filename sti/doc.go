// Package sti implements single-table inheritance for record-oriented
// persistence layers.
//
// Several concrete record types share one physical table and are told apart
// by a discriminator column (cast_type by default). The Resolver is the hook
// point a host persistence engine calls into:
//
//   - Creating stamps a new record with its concrete type before insert.
//   - Scope narrows queries issued through a descendant type to rows whose
//     discriminator equals that type exactly. The contract root is unscoped
//     unless its TypeDef opts in with ScopeExact.
//   - NewFromBuilder and Cast turn raw rows into the concrete type named by
//     their discriminator.
//   - NewInstance carries the table name and cast configuration of the
//     originating instance into the new one.
//
// Types are registered explicitly in a Registry at startup. Each TypeDef
// names its parent, a factory, optional default casts and the behaviors it
// overrides; there is no reflection-based discovery.
//
// Example:
//
//	reg := sti.NewRegistry()
//	reg.MustRegister(sti.TypeDef{Name: "fleet.Vehicle", New: func() sti.Record { return &Vehicle{} }})
//	reg.MustRegister(sti.TypeDef{Name: "fleet.Car", Parent: "fleet.Vehicle", New: func() sti.Record { return &Car{} }})
//
//	r := sti.NewResolver(reg)
//	rec, err := r.NewFromBuilder(&Vehicle{}, map[string]any{"id": 1, "cast_type": "fleet.Car"}, "default")
//	// rec is a *Car
package sti
