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


// Package pipeline builds the firmware image. The build is a graph of nodes,
// each of which produces one or more artifacts from its inputs. An edge
// exists between two nodes whenever one node reads an artifact written by
// the other. Edges can also be added explicitly, for barriers that are not
// expressed by files alone.
//
// The Scheduler runs the graph. Nodes whose dependencies have completed run
// in parallel, up to the limit given by the build.jobs preference. A node
// that fails cancels every node that depends on it but independent branches
// of the graph run to completion. The first failure is returned and names
// the stage and the artifact that failed.
//
// The Build type creates the graph for a project. Plan() returns the graph
// for a full build:
//
//	compile -> unit link -> extract -> repackage ----------+
//	compile -> module link -> externs ---------------------+-> link
//	link -> symbols, strip -> compress, module symbols, size
//	module link, assets -> filesystem
//	compress, symbols, module symbols, filesystem, size -> image -> manifest
//
// Assemble() returns the graph that packs an image from the artifacts of a
// previous build, as recorded in the manifest.
package pipeline
