package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosti/sti"
)

const (
	vehicleType = "fleet.Vehicle"
	carType     = "fleet.Car"
	truckType   = "fleet.Truck"
)

func newFleet() *sti.Registry {
	reg := sti.NewRegistry()
	reg.MustRegister(sti.TypeDef{Name: vehicleType, Casts: map[string]string{"wheels": "int"}})
	reg.MustRegister(sti.TypeDef{Name: carType, Parent: vehicleType})
	reg.MustRegister(sti.TypeDef{Name: truckType, Parent: vehicleType})
	return reg
}

func setup(t *testing.T, opts ...sti.Option) (*Store, sqlmock.Sqlmock, *sti.Resolver) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := sti.NewResolver(newFleet(), opts...)
	s, err := NewStore(db, "default", r)
	require.NoError(t, err)
	return s, mock, r
}

func proto(t *testing.T, r *sti.Resolver, name string) sti.Record {
	t.Helper()
	rec, err := r.Registry().New(name)
	require.NoError(t, err)
	return rec
}

func persisted(t *testing.T, r *sti.Resolver, attrs map[string]any) sti.Record {
	t.Helper()
	rec, err := r.NewFromBuilder(proto(t, r, vehicleType), attrs, "default")
	require.NoError(t, err)
	return rec
}

func TestNewStore_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewStore(nil, "default", sti.NewResolver(newFleet()))
	assert.Error(t, err)

	_, err = NewStore(db, "default", nil)
	assert.Error(t, err)

	s, err := NewStore(db, "reporting", sti.NewResolver(newFleet()), WithPrimaryKey("vehicle_id"), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, "reporting", s.Connection())
	assert.Equal(t, "vehicle_id", s.PrimaryKey())
}

func TestFind_ScopedThroughDescendant(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectQuery("SELECT * FROM `vehicles` WHERE `cast_type` = ?").
		WithArgs(carType).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cast_type", "name"}).
			AddRow(int64(1), []byte(carType), []byte("Civic")).
			AddRow(int64(2), []byte(carType), []byte("Golf")))

	car := proto(t, r, carType)
	recs, err := s.Find(context.Background(), car, s.Query(car))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	for _, rec := range recs {
		assert.Equal(t, carType, rec.TypeName())
		assert.True(t, rec.Exists())
		assert.Equal(t, "default", rec.Connection())
	}
	name, _ := recs[0].GetAttribute("name")
	assert.Equal(t, "Civic", name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEach_RootMaterializesMixedRows(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectQuery("SELECT * FROM `vehicles` ORDER BY `id` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "cast_type", "wheels"}).
			AddRow(int64(1), []byte(carType), []byte("4")).
			AddRow(int64(2), []byte(truckType), []byte("18")).
			AddRow(int64(3), []byte("fleet.Boat"), nil).
			AddRow(int64(4), nil, nil))

	vehicle := proto(t, r, vehicleType)
	var got []string
	stats, err := s.Each(context.Background(), vehicle, s.Query(vehicle).OrderBy("id", false), func(rec sti.Record) error {
		got = append(got, rec.TypeName())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{carType, truckType, vehicleType, vehicleType}, got)
	assert.Equal(t, vehicleType, stats.Requested)
	assert.Equal(t, int64(4), stats.Rows)
	assert.Equal(t, map[string]int64{carType: 1, truckType: 1, vehicleType: 2}, stats.PerType)
	assert.Equal(t, []string{"fleet.Boat"}, stats.UnresolvedValues())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEach_CastsCarryOverToMaterializedRows(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectQuery("SELECT * FROM `vehicles` WHERE `cast_type` = ? LIMIT 1").
		WithArgs(truckType).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cast_type", "wheels"}).
			AddRow(int64(9), []byte(truckType), []byte("18")))

	truck := proto(t, r, truckType)
	rec, err := s.First(context.Background(), truck, s.Query(truck))
	require.NoError(t, err)

	dyn, ok := rec.(*sti.Dynamic)
	require.True(t, ok)
	wheels, err := dyn.Get("wheels")
	require.NoError(t, err)
	assert.Equal(t, int64(18), wheels)
}

func TestEach_StrictResolverAborts(t *testing.T) {
	s, mock, r := setup(t, sti.WithPolicy(sti.Strict))

	mock.ExpectQuery("SELECT * FROM `vehicles`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "cast_type"}).
			AddRow(int64(1), []byte(carType)).
			AddRow(int64(2), []byte("fleet.Boat")))

	vehicle := proto(t, r, vehicleType)
	stats, err := s.Each(context.Background(), vehicle, s.Query(vehicle), func(sti.Record) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, sti.ErrUnresolvedType))
	assert.Equal(t, int64(1), stats.Rows)
}

func TestEach_CallbackErrorStops(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectQuery("SELECT * FROM `vehicles`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	stop := errors.New("stop")
	calls := 0
	vehicle := proto(t, r, vehicleType)
	_, err := s.Each(context.Background(), vehicle, s.Query(vehicle), func(sti.Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestEach_QueryError(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectQuery("SELECT * FROM `vehicles`").WillReturnError(sql.ErrConnDone)

	vehicle := proto(t, r, vehicleType)
	_, err := s.Find(context.Background(), vehicle, s.Query(vehicle))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestEach_InvalidIdentifier(t *testing.T) {
	s, _, r := setup(t)

	vehicle := proto(t, r, vehicleType)
	_, err := s.Find(context.Background(), vehicle, s.Query(vehicle).Where("name; --", 1))
	assert.Error(t, err)
}

func TestFirst_NotFound(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectQuery("SELECT * FROM `vehicles` WHERE `id` = ? AND `cast_type` = ? LIMIT 1").
		WithArgs(99, carType).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cast_type"}))

	car := proto(t, r, carType)
	_, err := s.First(context.Background(), car, s.Query(car).Where("id", 99))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_StampsDiscriminator(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectExec("INSERT INTO `vehicles` (`cast_type`, `name`) VALUES (?, ?)").
		WithArgs(carType, "Civic").
		WillReturnResult(sqlmock.NewResult(42, 1))

	car := proto(t, r, carType)
	car.SetAttribute("name", "Civic")
	require.NoError(t, s.Create(context.Background(), car))

	disc, ok := r.Discriminator(car)
	assert.True(t, ok)
	assert.Equal(t, carType, disc)
	id, _ := car.GetAttribute("id")
	assert.Equal(t, int64(42), id)
	assert.True(t, car.Exists())
	assert.Equal(t, "default", car.Connection())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_KeepsExplicitDiscriminatorAndKey(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectExec("INSERT INTO `vehicles` (`cast_type`, `id`) VALUES (?, ?)").
		WithArgs(truckType, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	vehicle := proto(t, r, vehicleType)
	vehicle.SetAttribute("cast_type", truckType)
	vehicle.SetAttribute("id", 7)
	vehicle.SetConnection("reporting")
	require.NoError(t, s.Create(context.Background(), vehicle))

	id, _ := vehicle.GetAttribute("id")
	assert.Equal(t, 7, id)
	assert.Equal(t, "reporting", vehicle.Connection())
}

func TestCreate_HaltedByListener(t *testing.T) {
	s, mock, r := setup(t)
	r.Events().Listen(sti.EventCreating, func(rec sti.Record) error {
		if _, ok := rec.GetAttribute("name"); !ok {
			return errors.New("name is required")
		}
		return nil
	})

	car := proto(t, r, carType)
	err := s.Create(context.Background(), car)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.False(t, car.Exists())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateKey(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectExec("INSERT INTO `vehicles` (`cast_type`, `id`) VALUES (?, ?)").
		WithArgs(carType, 1).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"})

	car := proto(t, r, carType)
	car.SetAttribute("id", 1)
	err := s.Create(context.Background(), car)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.False(t, car.Exists())
}

func TestUpdate(t *testing.T) {
	s, mock, r := setup(t)

	rec := persisted(t, r, map[string]any{"id": int64(5), "cast_type": carType, "name": "Civic"})
	rec.SetAttribute("name", "Accord")

	mock.ExpectExec("UPDATE `vehicles` SET `cast_type` = ?, `name` = ? WHERE `id` = ?").
		WithArgs(carType, "Accord", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Update(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotPersisted(t *testing.T) {
	s, _, r := setup(t)

	err := s.Update(context.Background(), proto(t, r, carType))
	assert.ErrorIs(t, err, ErrNotPersisted)

	rec := persisted(t, r, map[string]any{"cast_type": carType})
	err = s.Update(context.Background(), rec)
	assert.ErrorIs(t, err, ErrNotPersisted)
}

func TestSave(t *testing.T) {
	s, mock, r := setup(t)

	mock.ExpectExec("INSERT INTO `vehicles` (`cast_type`) VALUES (?)").
		WithArgs(truckType).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("UPDATE `vehicles` SET `cast_type` = ?, `load` = ? WHERE `id` = ?").
		WithArgs(truckType, 12, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	truck := proto(t, r, truckType)
	require.NoError(t, s.Save(context.Background(), truck))
	truck.SetAttribute("load", 12)
	require.NoError(t, s.Save(context.Background(), truck))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	s, mock, r := setup(t)

	rec := persisted(t, r, map[string]any{"id": int64(5), "cast_type": carType})

	mock.ExpectExec("DELETE FROM `vehicles` WHERE `id` = ?").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), rec))
	assert.False(t, rec.Exists())

	err := s.Delete(context.Background(), rec)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NoRows(t *testing.T) {
	s, mock, r := setup(t)

	rec := persisted(t, r, map[string]any{"id": int64(8), "cast_type": truckType})

	mock.ExpectExec("DELETE FROM `vehicles` WHERE `id` = ?").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), rec)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, rec.Exists())
}

func TestTranslate(t *testing.T) {
	other := &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}
	assert.Same(t, other, translate(other))

	dup := translate(&mysql.MySQLError{Number: 1062, Message: "dup"})
	assert.ErrorIs(t, dup, ErrDuplicateKey)
}
