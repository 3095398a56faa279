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


package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/database"
	"github.com/jetsetilly/n64build/paths"
)

// ManifestFile is the name of the manifest in the build directory.
const ManifestFile = "manifest.db"

// Sentinel error patterns for the manifest.
const (
	NoManifest       = "pipeline: no manifest. build the project first"
	NotInManifest    = "pipeline: %s is not in the manifest"
	ManifestMismatch = "pipeline: %s has changed since it was built (%s)"
)

// Roles of the artifacts recorded in the manifest.
const (
	RoleELF        = "elf"
	RoleProgram    = "program"
	RoleSymbols    = "symbols"
	RoleModuleSyms = "module-symbols"
	RoleFilesystem = "filesystem"
	RoleImage      = "image"
)

const artifactEntryID = "artifact"

const (
	artifactFieldRole int = iota
	artifactFieldPath
	artifactFieldSize
	artifactFieldSHA1
	numArtifactFields
)

// ArtifactEntry is a manifest record of a single artifact.
type ArtifactEntry struct {
	Role string

	// relative to the build directory
	Path string

	Size int64
	SHA1 string
}

// ID implements the database.Entry interface.
func (ent *ArtifactEntry) ID() string {
	return artifactEntryID
}

// String implements the database.Entry interface.
func (ent *ArtifactEntry) String() string {
	return fmt.Sprintf("[%s] %s (%d bytes) %s", ent.Role, ent.Path, ent.Size, ent.SHA1)
}

// Serialise implements the database.Entry interface.
func (ent *ArtifactEntry) Serialise() (database.SerialisedEntry, error) {
	return database.SerialisedEntry{
		ent.Role,
		ent.Path,
		strconv.FormatInt(ent.Size, 10),
		ent.SHA1,
	}, nil
}

// CleanUp implements the database.Entry interface.
func (ent *ArtifactEntry) CleanUp() error {
	return nil
}

func deserialiseArtifactEntry(fields database.SerialisedEntry) (database.Entry, error) {
	if len(fields) != numArtifactFields {
		return nil, curated.Errorf("artifact entry: expected %d fields (%d)", numArtifactFields, len(fields))
	}

	size, err := strconv.ParseInt(fields[artifactFieldSize], 10, 64)
	if err != nil {
		return nil, curated.Errorf("artifact entry: invalid size (%s)", fields[artifactFieldSize])
	}

	return &ArtifactEntry{
		Role: fields[artifactFieldRole],
		Path: fields[artifactFieldPath],
		Size: size,
		SHA1: fields[artifactFieldSHA1],
	}, nil
}

func initDBSession(db *database.Session) error {
	return db.RegisterEntryType(artifactEntryID, deserialiseArtifactEntry)
}

// digest returns the size and SHA1 of the file.
func digest(filename string) (int64, string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha1.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}

	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// Manifest records the artifacts of the last successful build.
type Manifest struct {
	buildDir string
	entries  map[string]*ArtifactEntry
}

// NewManifest creates an empty manifest for the build directory.
func NewManifest(buildDir string) *Manifest {
	return &Manifest{
		buildDir: buildDir,
		entries:  make(map[string]*ArtifactEntry),
	}
}

// LoadManifest reads the manifest in the build directory.
func LoadManifest(buildDir string) (*Manifest, error) {
	fn := filepath.Join(buildDir, ManifestFile)
	if _, err := os.Stat(fn); os.IsNotExist(err) {
		return nil, curated.Errorf(NoManifest)
	}

	db, err := database.StartSession(fn, database.ActivityReading, initDBSession)
	if err != nil {
		return nil, curated.Errorf("pipeline: %v", err)
	}
	defer db.EndSession(false)

	m := NewManifest(buildDir)
	_, err = db.SelectAll(func(e database.Entry) error {
		ent := e.(*ArtifactEntry)
		m.entries[ent.Role] = ent
		return nil
	})
	if err != nil {
		return nil, curated.Errorf("pipeline: %v", err)
	}

	return m, nil
}

// Record the artifact under the role, replacing any previous record for
// the role.
func (m *Manifest) Record(role string, filename string) error {
	size, sum, err := digest(filename)
	if err != nil {
		return curated.Errorf("pipeline: manifest: %v", err)
	}
	m.entries[role] = &ArtifactEntry{
		Role: role,
		Path: paths.Rel(m.buildDir, filename),
		Size: size,
		SHA1: sum,
	}
	return nil
}

// Has returns true if an artifact has been recorded for the role.
func (m *Manifest) Has(role string) bool {
	_, ok := m.entries[role]
	return ok
}

// Verify that the artifact recorded for the role has not changed. Returns
// the absolute path of the artifact.
func (m *Manifest) Verify(role string) (string, error) {
	ent, ok := m.entries[role]
	if !ok {
		return "", curated.Errorf(NotInManifest, role)
	}

	fn := filepath.Join(m.buildDir, filepath.FromSlash(ent.Path))

	size, sum, err := digest(fn)
	if err != nil {
		return "", curated.Errorf(ManifestMismatch, ent.Path, "missing")
	}
	if size != ent.Size || sum != ent.SHA1 {
		return "", curated.Errorf(ManifestMismatch, ent.Path, "contents differ")
	}

	return fn, nil
}

// Save writes the manifest to the build directory.
func (m *Manifest) Save() error {
	db, err := database.StartSession(filepath.Join(m.buildDir, ManifestFile), database.ActivityCreating, initDBSession)
	if err != nil {
		return curated.Errorf("pipeline: %v", err)
	}

	if err := db.Clear(); err != nil {
		return curated.Errorf("pipeline: %v", err)
	}

	for _, role := range []string{RoleELF, RoleProgram, RoleSymbols, RoleModuleSyms, RoleFilesystem, RoleImage} {
		if ent, ok := m.entries[role]; ok {
			if err := db.Add(ent); err != nil {
				return curated.Errorf("pipeline: %v", err)
			}
		}
	}

	if err := db.EndSession(true); err != nil {
		return curated.Errorf("pipeline: %v", err)
	}

	return nil
}

// List writes the manifest to w.
func (m *Manifest) List(w io.Writer) {
	for _, role := range []string{RoleELF, RoleProgram, RoleSymbols, RoleModuleSyms, RoleFilesystem, RoleImage} {
		if ent, ok := m.entries[role]; ok {
			fmt.Fprintln(w, ent.String())
		}
	}
}
