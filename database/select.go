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

import "github.com/jetsetilly/n64build/curated"

// SelectEmpty is returned by SelectKeys() when nothing was selected.
const SelectEmpty = "database: select empty"

// SelectAll calls onSelect for every entry in key order. Selection stops at
// the first error, which is returned with the entry that caused it.
func (db Session) SelectAll(onSelect func(Entry) error) (Entry, error) {
	var entry Entry

	if onSelect == nil {
		onSelect = func(_ Entry) error { return nil }
	}

	for _, k := range db.SortedKeyList() {
		entry = db.entries[k]
		if err := onSelect(entry); err != nil {
			return entry, err
		}
	}

	return entry, nil
}

// SelectKeys is like SelectAll() but only for the listed keys. If no keys
// are listed then every entry is selected.
func (db Session) SelectKeys(onSelect func(Entry) error, keys ...int) (Entry, error) {
	var entry Entry

	if onSelect == nil {
		onSelect = func(_ Entry) error { return nil }
	}

	keyList := keys
	if len(keys) == 0 {
		keyList = db.SortedKeyList()
	}

	for _, k := range keyList {
		ent, ok := db.entries[k]
		if !ok {
			continue
		}
		entry = ent
		if err := onSelect(entry); err != nil {
			return entry, err
		}
	}

	if entry == nil {
		return nil, curated.Errorf(SelectEmpty)
	}

	return entry, nil
}
