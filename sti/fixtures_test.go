package sti_test

import (
	"github.com/dbsmedya/gosti/sti"
)

type Vehicle struct{ sti.Model }

type Car struct{ sti.Model }

type SportsCar struct{ sti.Model }

type Truck struct{ sti.Model }

const (
	vehicleType   = "fleet.Vehicle"
	carType       = "fleet.Car"
	sportsCarType = "fleet.SportsCar"
	truckType     = "fleet.Truck"
)

// newFleet builds Vehicle -> {Car -> SportsCar, Truck}.
func newFleet() *sti.Registry {
	reg := sti.NewRegistry()
	reg.MustRegister(sti.TypeDef{
		Name:    vehicleType,
		New:     func() sti.Record { return &Vehicle{} },
		Methods: []string{"describe", "wheels"},
		Casts:   map[string]string{"wheels": "int"},
	})
	reg.MustRegister(sti.TypeDef{
		Name:      carType,
		Parent:    vehicleType,
		New:       func() sti.Record { return &Car{} },
		Overrides: []string{"describe"},
		Casts:     map[string]string{"seats": "int"},
	})
	reg.MustRegister(sti.TypeDef{
		Name:   sportsCarType,
		Parent: carType,
		New:    func() sti.Record { return &SportsCar{} },
		Casts:  map[string]string{"wheels": "float"},
	})
	reg.MustRegister(sti.TypeDef{
		Name:      truckType,
		Parent:    vehicleType,
		New:       func() sti.Record { return &Truck{} },
		Overrides: []string{"wheels"},
	})
	return reg
}

func mustNew(reg *sti.Registry, name string) sti.Record {
	rec, err := reg.New(name)
	if err != nil {
		panic(err)
	}
	return rec
}
