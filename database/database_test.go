// This file is part of N64Build.
//
// N64Build is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// N64Build is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with N64Build.  If not, see <https://www.gnu.org/licenses/>.


package database_test

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/database"
	"github.com/jetsetilly/n64build/test"
)

type counter struct {
	name  string
	count int
}

func (c *counter) ID() string {
	return "counter"
}

func (c *counter) String() string {
	return c.name + "=" + strconv.Itoa(c.count)
}

func (c *counter) Serialise() (database.SerialisedEntry, error) {
	return database.SerialisedEntry{c.name, strconv.Itoa(c.count)}, nil
}

func (c *counter) CleanUp() error {
	return nil
}

func deserialiseCounter(fields database.SerialisedEntry) (database.Entry, error) {
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, err
	}
	return &counter{name: fields[0], count: n}, nil
}

func initDBSession(db *database.Session) error {
	return db.RegisterEntryType("counter", deserialiseCounter)
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	_, err := database.StartSession(path, database.ActivityModifying, initDBSession)
	test.ExpectSuccess(t, curated.Is(err, database.NotAvailable))

	db, err := database.StartSession(path, database.ActivityCreating, initDBSession)
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, db.Add(&counter{name: "foo", count: 1}))
	test.DemandSuccess(t, db.Add(&counter{name: "bar", count: 2}))
	test.DemandSuccess(t, db.EndSession(true))

	test.ExpectEquality(t, string(test.ReadFile(t, path)), "000,counter,foo,1\n001,counter,bar,2\n")

	db, err = database.StartSession(path, database.ActivityReading, initDBSession)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, db.NumEntries(), 2)

	var names []string
	_, err = db.SelectAll(func(e database.Entry) error {
		names = append(names, e.(*counter).name)
		return nil
	})
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, strings.Join(names, " "), "foo bar")

	ent, err := db.SelectKeys(nil, 1)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, ent.String(), "bar=2")

	_, err = db.SelectKeys(nil, 7)
	test.ExpectSuccess(t, curated.Is(err, database.SelectEmpty))

	test.ExpectSuccess(t, curated.Is(db.Add(&counter{}), database.ReadOnly))
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := database.StartSession(path, database.ActivityCreating, initDBSession)
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, db.Add(&counter{name: "a"}))
	test.DemandSuccess(t, db.Add(&counter{name: "b"}))
	test.DemandSuccess(t, db.Delete(0))
	test.ExpectFailure(t, db.Delete(0))

	// the lowest free key is reused
	test.DemandSuccess(t, db.Add(&counter{name: "c"}))
	ent, err := db.SelectKeys(nil, 0)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, ent.String(), "c=0")

	w := &test.CompareWriter{}
	test.DemandSuccess(t, db.List(w))
	test.ExpectSuccess(t, w.Compare("000 c=0\n001 b=0\nTotal: 2\n"))
}

func TestMalformed(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "unknown.db")
	test.WriteFile(t, path, []byte("000,widget,x\n"))
	_, err := database.StartSession(path, database.ActivityReading, initDBSession)
	test.ExpectSuccess(t, curated.Is(err, database.UnknownEntry))

	path = filepath.Join(dir, "badkey.db")
	test.WriteFile(t, path, []byte("zero,counter,x,1\n"))
	_, err = database.StartSession(path, database.ActivityReading, initDBSession)
	test.ExpectSuccess(t, curated.Is(err, database.MalformedRecord))

	db, err := database.StartSession(filepath.Join(dir, "field.db"), database.ActivityCreating, initDBSession)
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, db.Add(&counter{name: "a,b"}))
	test.ExpectSuccess(t, curated.Is(db.EndSession(true), database.InvalidField))
}
