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

package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/paths"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

// MalformedRule is returned by ParseRules() for a rule that cannot be
// understood.
const MalformedRule = "assets: malformed conversion rule (%s)"

// BuiltinPCM is the tool name that selects the PCMConverter in a rule. The
// rule must be for .wav or .mp3 and takes no flags.
const BuiltinPCM = "pcm"

// output extensions of the libdragon converters.
var toolOutput = map[string]string{
	BuiltinPCM:    PCMExt,
	"mksprite":    ".sprite",
	"mkfont":      ".font64",
	"audioconv64": "",
	"mkmodel":     ".model64",
}

// audioconv64 chooses the output extension from the input.
var audioconvOutput = map[string]string{
	".wav": ".wav64",
	".mp3": ".wav64",
	".xm":  ".xm64",
	".ym":  ".ym64",
}

// Rule describes an external conversion.
type Rule struct {
	Ext    string
	OutExt string
	Tool   string
	Flags  []string
}

// ParseRules parses a rules string. Rules are separated by semicolons. Each
// rule is an extension, an optional output extension, and a command line.
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule

	for _, r := range strings.Split(s, ";") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}

		kv := strings.SplitN(r, "=", 2)
		if len(kv) != 2 {
			return nil, curated.Errorf(MalformedRule, r)
		}

		exts := strings.SplitN(strings.TrimSpace(kv[0]), ":", 2)
		cmd := strings.Fields(kv[1])
		if len(cmd) == 0 {
			return nil, curated.Errorf(MalformedRule, r)
		}

		rl := Rule{
			Ext:   strings.ToLower(exts[0]),
			Tool:  cmd[0],
			Flags: cmd[1:],
		}

		if !strings.HasPrefix(rl.Ext, ".") || len(rl.Ext) < 2 {
			return nil, curated.Errorf(MalformedRule, r)
		}

		if len(exts) == 2 {
			rl.OutExt = exts[1]
			if !strings.HasPrefix(rl.OutExt, ".") {
				return nil, curated.Errorf(MalformedRule, r)
			}
		} else if ext, ok := toolOutput[rl.Tool]; ok {
			rl.OutExt = ext
			if rl.Tool == "audioconv64" {
				rl.OutExt = audioconvOutput[rl.Ext]
			}
		}

		if rl.OutExt == "" {
			return nil, curated.Errorf(MalformedRule, r)
		}

		if rl.Tool == BuiltinPCM {
			if len(exts) == 2 || len(rl.Flags) > 0 || (rl.Ext != ".wav" && rl.Ext != ".mp3") {
				return nil, curated.Errorf(MalformedRule, r)
			}
		}

		rules = append(rules, rl)
	}

	return rules, nil
}

// ExternalConverter runs a converter from the toolchain.
type ExternalConverter struct {
	Rule Rule
	TC   *toolchain.Toolchain
	Run  toolrun.Runner
}

// Output implements the Converter interface.
func (c *ExternalConverter) Output(src string, outDir string) string {
	return filepath.Join(outDir, paths.ReplaceExt(filepath.Base(src), c.Rule.OutExt))
}

// Convert implements the Converter interface.
func (c *ExternalConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", curated.Errorf("assets: %v", err)
	}

	out := c.Output(src, outDir)

	cmd := c.TC.Convert(c.Rule.Tool, c.Rule.Flags, src, outDir)
	if err := c.Run.Run(ctx, cmd); err != nil {
		return "", curated.Errorf("assets: %s: %v", filepath.Base(src), err)
	}

	if _, err := os.Stat(out); err != nil {
		return "", curated.Errorf("assets: %s: %s did not create %s", filepath.Base(src), c.Rule.Tool, filepath.Base(out))
	}

	return out, nil
}
