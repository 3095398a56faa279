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

package version

import (
	"fmt"
	"runtime/debug"
)

// ApplicationName is used in messages and in the image header.
const ApplicationName = "n64build"

// number is set by the linker for release builds:
//
//	go build -ldflags "-X github.com/jetsetilly/n64build/version.number=v0.3.0"
var number string

// revision is the vcs revision of the source. The "+dirty" suffix indicates
// uncommitted changes.
var revision string

// version is the release number or, for builds without one, "unreleased"
// when vcs information is available and "local" when it is not (go run).
var version string

// Version returns the version, the revision and whether the build is a
// numbered release. The revision is of little use to the user of a release.
func Version() (string, string, bool) {
	return version, revision, version == number
}

// Banner returns the application name and version in a single string. The
// banner is embedded in the image header by the native packer.
func Banner() string {
	return fmt.Sprintf("%s %s", ApplicationName, version)
}

func init() {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	version, revision = describe(number, settings)
}

// describe the build from the release number and the build settings.
func describe(number string, settings []debug.BuildSetting) (string, string) {
	var vcs, modified bool
	rev := "no revision information"

	for _, s := range settings {
		switch s.Key {
		case "vcs":
			vcs = true
		case "vcs.revision":
			if s.Value != "" {
				rev = s.Value
			}
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	if modified && rev != "no revision information" {
		rev += "+dirty"
	}

	switch {
	case number != "":
		return number, rev
	case vcs:
		return "unreleased", rev
	}
	return "local", rev
}
