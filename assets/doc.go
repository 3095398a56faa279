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

// Package assets converts the files of the assets directory for inclusion in
// the filesystem image.
//
// Converters are found in a Registry by the extension of the source file.
// Conversions are described by rules in the assets.convert preference and
// are done by external tools:
//
//	.png=mksprite --format RGBA16; .ttf=mkfont
//
// The tool name "pcm" selects the builtin PCMConverter, which decodes .wav
// and .mp3 files to raw mono 16bit samples:
//
//	.wav=pcm; .mp3=pcm
//
// The output extension of the libdragon converters is known. For any other
// tool the output extension must be given after the source extension:
//
//	.xyz:.bin=mytool --fast
//
// A file with no converter is copied unchanged.
package assets
