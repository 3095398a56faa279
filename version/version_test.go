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


package version_test

import (
	"strings"
	"testing"

	"github.com/jetsetilly/n64build/test"
	"github.com/jetsetilly/n64build/version"
)

func TestBanner(t *testing.T) {
	v, r, _ := version.Version()
	test.ExpectInequality(t, v, "")
	test.ExpectInequality(t, r, "")

	// the banner is written into a fixed size field of the image header
	b := version.Banner()
	test.ExpectSuccess(t, strings.HasPrefix(b, version.ApplicationName+" "))
	test.ExpectSuccess(t, strings.HasSuffix(b, v))
}
