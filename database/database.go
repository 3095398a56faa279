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


package database

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jetsetilly/n64build/curated"
)

// Activity is the type of activity that will be happening during the session.
type Activity int

// List of valid Activity values.
const (
	ActivityReading Activity = iota
	ActivityModifying
	ActivityCreating
)

// Sentinel error patterns.
const (
	NotAvailable    = "database: not available (%s)"
	UnknownEntry    = "database: unknown entry type (%s)"
	MalformedRecord = "database: malformed record on line %d"
	InvalidField    = "database: field cannot contain separators (%q)"
	ReadOnly        = "database: session is read only"
)

const maxEntries = 1000

const fieldSep = ","
const entrySep = "\n"

const (
	leaderFieldKey int = iota
	leaderFieldID
	numLeaderFields
)

func recordHeader(key int, id string) string {
	return fmt.Sprintf("%03d%s%s", key, fieldSep, id)
}

// Session represents an open database.
type Session struct {
	path     string
	activity Activity

	entries    map[int]Entry
	entryTypes map[string]Deserialiser
}

// StartSession opens the database at path. The init function must register
// every entry type the database might contain.
func StartSession(path string, activity Activity, init func(*Session) error) (*Session, error) {
	db := &Session{
		path:       path,
		activity:   activity,
		entries:    make(map[int]Entry),
		entryTypes: make(map[string]Deserialiser),
	}

	if init != nil {
		if err := init(db); err != nil {
			return nil, curated.Errorf("database: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && activity == ActivityCreating {
			return db, nil
		}
		return nil, curated.Errorf(NotAvailable, path)
	}
	defer f.Close()

	if err := db.readEntries(f); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *Session) readEntries(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		rec := strings.TrimSpace(scanner.Text())
		if rec == "" {
			continue
		}

		fields := strings.Split(rec, fieldSep)
		if len(fields) < numLeaderFields {
			return curated.Errorf(MalformedRecord, line)
		}

		key, err := strconv.Atoi(fields[leaderFieldKey])
		if err != nil {
			return curated.Errorf(MalformedRecord, line)
		}
		if _, ok := db.entries[key]; ok {
			return curated.Errorf(MalformedRecord, line)
		}

		des, ok := db.entryTypes[fields[leaderFieldID]]
		if !ok {
			return curated.Errorf(UnknownEntry, fields[leaderFieldID])
		}

		ent, err := des(fields[numLeaderFields:])
		if err != nil {
			return curated.Errorf("database: line %d: %v", line, err)
		}

		db.entries[key] = ent
	}

	if err := scanner.Err(); err != nil {
		return curated.Errorf("database: %v", err)
	}

	return nil
}

// EndSession closes the database. If commit is true and the session was not
// started with ActivityReading the entries are written to disk, replacing
// the previous contents.
func (db *Session) EndSession(commit bool) error {
	if !commit || db.activity == ActivityReading {
		return nil
	}

	var s strings.Builder
	for _, k := range db.SortedKeyList() {
		ent := db.entries[k]

		ser, err := ent.Serialise()
		if err != nil {
			return curated.Errorf("database: %v", err)
		}

		s.WriteString(recordHeader(k, ent.ID()))
		for _, f := range ser {
			if strings.Contains(f, fieldSep) || strings.Contains(f, entrySep) {
				return curated.Errorf(InvalidField, f)
			}
			s.WriteString(fieldSep)
			s.WriteString(f)
		}
		s.WriteString(entrySep)
	}

	if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
		return curated.Errorf("database: %v", err)
	}

	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(s.String()), 0o644); err != nil {
		return curated.Errorf("database: %v", err)
	}
	if err := os.Rename(tmp, db.path); err != nil {
		_ = os.Remove(tmp)
		return curated.Errorf("database: %v", err)
	}

	return nil
}

// NumEntries returns the number of entries in the database.
func (db Session) NumEntries() int {
	return len(db.entries)
}

// SortedKeyList returns the keys of every entry in ascending order.
func (db Session) SortedKeyList() []int {
	keyList := make([]int, 0, len(db.entries))
	for k := range db.entries {
		keyList = append(keyList, k)
	}
	sort.Ints(keyList)
	return keyList
}

// List writes a human readable summary of the database to output.
func (db Session) List(output io.Writer) error {
	if db.NumEntries() == 0 {
		if _, err := io.WriteString(output, "database is empty\n"); err != nil {
			return err
		}
		return nil
	}

	for _, key := range db.SortedKeyList() {
		if _, err := fmt.Fprintf(output, "%03d %s\n", key, db.entries[key]); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(output, "Total: %d\n", db.NumEntries()); err != nil {
		return err
	}

	return nil
}

// Add an entry to the database. The entry is given the lowest free key.
func (db *Session) Add(ent Entry) error {
	if db.activity == ActivityReading {
		return curated.Errorf(ReadOnly)
	}

	var key int

	// find spare key
	for key = 0; key < maxEntries; key++ {
		if _, ok := db.entries[key]; !ok {
			break
		}
	}

	if key == maxEntries {
		return curated.Errorf("database: maximum entries exceeded (max %d)", maxEntries)
	}

	db.entries[key] = ent

	return nil
}

// Delete the entry with the key. The entry's CleanUp() function is called
// first.
func (db *Session) Delete(key int) error {
	if db.activity == ActivityReading {
		return curated.Errorf(ReadOnly)
	}

	ent, ok := db.entries[key]
	if !ok {
		return curated.Errorf("database: key not available (%d)", key)
	}

	if err := ent.CleanUp(); err != nil {
		return curated.Errorf("database: %v", err)
	}

	delete(db.entries, key)

	return nil
}

// Clear removes every entry without calling CleanUp().
func (db *Session) Clear() error {
	if db.activity == ActivityReading {
		return curated.Errorf(ReadOnly)
	}
	db.entries = make(map[int]Entry)
	return nil
}
