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


package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/logger"
	"github.com/jetsetilly/n64build/modalflag"
	"github.com/jetsetilly/n64build/pipeline"
	"github.com/jetsetilly/n64build/prefs"
	"github.com/jetsetilly/n64build/statsview"
	"github.com/jetsetilly/n64build/toolrun"
	"github.com/jetsetilly/n64build/upload"
	"github.com/jetsetilly/n64build/version"
)

// exit value for errors that were not caused by a failing tool.
const exitError = 10

// the number of log entries printed when a build fails.
const failureTail = 10

// Sentinel error patterns for the command line.
const (
	UnsafeClean = "clean: refusing to remove %s"
)

type stateReq = string

const (
	// main thread should end as soon as possible.
	//
	// takes optional int argument, indicating the status code.
	reqQuit stateReq = "QUIT"
)

type stateRequest struct {
	req  stateReq
	args interface{}
}

// communication between the main() function and the launch() function. the
// main thread is left free to handle interrupt signals.
type mainSync struct {
	state chan stateRequest
}

// newRunner creates the runner for external tools. replaced for testing.
var newRunner = func(env *environment.Environment, output io.Writer) toolrun.Runner {
	r := &toolrun.ExecRunner{}
	if env.Verbose {
		r.Shell = toolrun.NewShell(output)
		r.Output = output
	}
	return r
}

func main() {
	sync := &mainSync{
		state: make(chan stateRequest),
	}

	ctx, cancel := context.WithCancel(context.Background())

	intChan := make(chan os.Signal, 1)
	signal.Notify(intChan, os.Interrupt)

	go launch(ctx, sync, os.Args[1:])

	// the value to use with os.Exit()
	exitVal := 0

	done := false
	for !done {
		select {
		case <-intChan:
			// cancelling the context kills any running tools. the build
			// winds down and launch() sends the quit request
			fmt.Println("\r")
			cancel()
			signal.Reset(os.Interrupt)

		case state := <-sync.state:
			switch state.req {
			case reqQuit:
				done = true
				if state.args != nil {
					if v, ok := state.args.(int); ok {
						exitVal = v
					} else {
						panic(fmt.Sprintf("cannot convert %s arguments into int", reqQuit))
					}
				}
			}
		}
	}

	cancel()
	os.Exit(exitVal)
}

// launch is called from main() as a goroutine.
func launch(ctx context.Context, sync *mainSync, args []string) {
	sync.state <- stateRequest{req: reqQuit, args: run(ctx, args, os.Stdout, os.Stderr)}
}

// run the command line and return the exit value.
func run(ctx context.Context, args []string, output io.Writer, errOutput io.Writer) int {
	md := &modalflag.Modes{Output: output}
	md.NewArgs(args)
	md.AddSubModes("BUILDPROG", "NOBUILD", "SIZE", "UPLOAD", "RESET", "SDUPLOAD",
		"CLEAN", "GRAPH", "MANIFEST", "VERSION")

	p, err := md.Parse()
	switch p {
	case modalflag.ParseHelp:
		return 0

	case modalflag.ParseError:
		fmt.Fprintf(errOutput, "* error: %v\n", err)
		return exitError
	}

	switch md.Mode() {
	case "BUILDPROG":
		err = buildprog(ctx, md, output)

	case "NOBUILD":
		err = nobuild(ctx, md)

	case "SIZE":
		err = size(ctx, md, output)

	case "UPLOAD":
		err = uploadImage(ctx, md)

	case "RESET":
		err = reset(ctx, md)

	case "SDUPLOAD":
		err = sdupload(ctx, md)

	case "CLEAN":
		err = clean(md)

	case "GRAPH":
		err = graph(md, output)

	case "MANIFEST":
		err = manifest(md, output)

	case "VERSION":
		err = showVersion(md, output)
	}

	if err != nil {
		fmt.Fprintf(logger.NewColorizer(errOutput), "* error in %s mode: %v\n", md, err)
		return exitCode(err)
	}

	return 0
}

// exitCode returns the exit code of the failing tool or exitError if the
// error was not caused by a tool.
func exitCode(err error) int {
	if code, ok := toolrun.ExitCode(err); ok && code > 0 {
		return code
	}
	return exitError
}

// options common to every mode that reads the project.
type options struct {
	project *string
	prefs   *string
	verbose *bool
	quiet   *bool
	jobs    *int
	stats   *bool
}

func addOptions(md *modalflag.Modes) *options {
	opts := &options{
		project: md.AddString("project", ".", "project directory"),
		prefs:   md.AddString("prefs", "", "preferences to override (key::value; key::value)"),
		verbose: md.AddBool("v", false, "print commands and echo the log"),
		quiet:   md.AddBool("quiet", false, "suppress the log"),
		jobs:    md.AddInt("jobs", 0, "maximum number of parallel jobs (overrides build.jobs)"),
	}
	if statsview.Available() {
		opts.stats = md.AddBool("statsview", false, fmt.Sprintf("run stats server (%s)", statsview.Address))
	}
	return opts
}

// project holds everything needed to work on a project.
type project struct {
	env *environment.Environment
	run toolrun.Runner

	// stops the stats server if it was started
	stop func()
}

func (prj *project) close() {
	if prj.stop != nil {
		prj.stop()
	}
}

// open the project described by the options. the environment is created
// here and is not changed after open() returns.
func open(opts *options, output io.Writer) (*project, error) {
	dir, err := filepath.Abs(*opts.project)
	if err != nil {
		return nil, curated.Errorf("project: %v", err)
	}

	// the jobs flag is a shortcut for the build.jobs preference
	pr := *opts.prefs
	if *opts.jobs > 0 {
		pr = fmt.Sprintf("build.jobs::%d; %s", *opts.jobs, pr)
	}
	cl := prefs.NewCommandLine(pr)

	env, err := environment.NewEnvironment(dir, cl)
	if err != nil {
		return nil, err
	}

	if u := cl.Unused(); u != "" {
		fmt.Fprintf(output, "* unrecognised preferences: %s\n", u)
	}

	env.Verbose = *opts.verbose
	env.Quiet = *opts.quiet

	if env.Verbose {
		logger.SetEcho(logger.NewColorizer(output))
	} else {
		logger.SetEcho(nil)
	}

	prj := &project{
		env: env,
		run: newRunner(env, output),
	}

	if opts.stats != nil && *opts.stats {
		prj.stop = statsview.Launch(output)
	}

	return prj, nil
}

// parse the flags of a mode and open the project. returns nil if help was
// printed.
func openMode(md *modalflag.Modes, opts *options, minArgs int, maxArgs int) (*project, error) {
	p, err := md.Parse()
	if err != nil {
		return nil, err
	}
	if p != modalflag.ParseContinue {
		return nil, nil
	}
	if err := md.ExpectArgs(minArgs, maxArgs); err != nil {
		return nil, err
	}
	return open(opts, md.Output)
}

// runGraph runs the graph with the scheduler. the tail of the log is printed
// if the graph fails.
func runGraph(ctx context.Context, prj *project, g *pipeline.Graph, report bool, output io.Writer) error {
	s := &pipeline.Scheduler{
		Jobs: prj.env.Jobs,
		Perm: prj.env,
	}

	rep, err := s.Run(ctx, g)
	if report {
		rep.Write(output)
	}

	if err != nil && !prj.env.Verbose && !prj.env.Quiet {
		logger.Tail(output, failureTail)
	}

	return err
}

// build runs the full build.
func build(ctx context.Context, prj *project, report bool, output io.Writer) (*pipeline.Build, error) {
	if err := prj.env.CheckToolchain(); err != nil {
		return nil, err
	}

	b, err := pipeline.NewBuild(prj.env, prj.run)
	if err != nil {
		return nil, err
	}

	g, err := b.Plan()
	if err != nil {
		return nil, err
	}

	return b, runGraph(ctx, prj, g, report, output)
}

func buildprog(ctx context.Context, md *modalflag.Modes, output io.Writer) error {
	md.NewMode()
	opts := addOptions(md)
	report := md.AddBool("report", false, "print the duration of every build step")

	prj, err := openMode(md, opts, 0, 0)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	b, err := build(ctx, prj, *report, output)
	if err != nil {
		return err
	}

	return b.Sizer().Print(ctx, b.Store().Program(artifacts.SuffixELF), output)
}

func nobuild(ctx context.Context, md *modalflag.Modes) error {
	md.NewMode()
	opts := addOptions(md)

	prj, err := openMode(md, opts, 0, 0)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	b, err := pipeline.NewBuild(prj.env, prj.run)
	if err != nil {
		return err
	}

	g, err := b.Assemble()
	if err != nil {
		return err
	}

	return runGraph(ctx, prj, g, false, md.Output)
}

func size(ctx context.Context, md *modalflag.Modes, output io.Writer) error {
	md.NewMode()
	opts := addOptions(md)
	sections := md.AddBool("sections", false, "list the size of every section")

	prj, err := openMode(md, opts, 0, 0)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	if err := prj.env.CheckToolchain(); err != nil {
		return err
	}

	b, err := pipeline.NewBuild(prj.env, prj.run)
	if err != nil {
		return err
	}

	g, err := b.PlanELF()
	if err != nil {
		return err
	}

	if err := runGraph(ctx, prj, g, false, output); err != nil {
		return err
	}

	elf := b.Store().Program(artifacts.SuffixELF)

	if *sections {
		rep, err := b.Sizer().Measure(ctx, elf)
		if err != nil {
			return err
		}
		rep.Write(output, prj.env.ROMSize)
		return nil
	}

	return b.Sizer().Print(ctx, elf, output)
}

func uploadImage(ctx context.Context, md *modalflag.Modes) error {
	md.NewMode()
	opts := addOptions(md)
	skip := md.AddBool("nobuild", false, "upload the image of the previous build")

	prj, err := openMode(md, opts, 0, 0)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	// a misconfigured uploader is reported before the build
	u, err := upload.NewUploader(prj.env, prj.run)
	if err != nil {
		return err
	}

	var img string

	if *skip {
		store, err := artifacts.NewStore(prj.env)
		if err != nil {
			return err
		}
		m, err := pipeline.LoadManifest(store.BuildDir())
		if err != nil {
			return err
		}
		img, err = m.Verify(pipeline.RoleImage)
		if err != nil {
			return err
		}
	} else {
		b, err := build(ctx, prj, false, md.Output)
		if err != nil {
			return err
		}
		img = b.Store().Program(artifacts.SuffixImage)
	}

	return u.Upload(ctx, img)
}

func reset(ctx context.Context, md *modalflag.Modes) error {
	md.NewMode()
	opts := addOptions(md)

	prj, err := openMode(md, opts, 0, 0)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	u, err := upload.NewUploader(prj.env, prj.run)
	if err != nil {
		return err
	}

	r, err := upload.AsResetter(u)
	if err != nil {
		return err
	}

	return r.Reset(ctx)
}

func sdupload(ctx context.Context, md *modalflag.Modes) error {
	md.NewMode()
	opts := addOptions(md)
	md.AdditionalHelp("arguments: <file> [destination on SD card]")

	prj, err := openMode(md, opts, 1, 2)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	u, err := upload.NewUploader(prj.env, prj.run)
	if err != nil {
		return err
	}

	sd, err := upload.AsSDUploader(u)
	if err != nil {
		return err
	}

	return sd.SDUpload(ctx, md.GetArg(0), md.GetArg(1))
}

func clean(md *modalflag.Modes) error {
	md.NewMode()
	opts := addOptions(md)

	prj, err := openMode(md, opts, 0, 0)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	store, err := artifacts.NewStore(prj.env)
	if err != nil {
		return err
	}

	// the build directory must be inside the project and must not contain
	// the sources
	dir := store.BuildDir()
	if !inside(prj.env.ProjectDir, dir) || dir == store.SourceDir() || inside(dir, store.SourceDir()) {
		return curated.Errorf(UnsafeClean, dir)
	}

	if err := os.RemoveAll(dir); err != nil {
		return curated.Errorf("clean: %v", err)
	}

	logger.Logf(prj.env, "clean", "removed %s", dir)

	return nil
}

// inside returns true if path is below dir. dir itself is not inside dir.
func inside(dir string, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func graph(md *modalflag.Modes, output io.Writer) error {
	md.NewMode()
	opts := addOptions(md)
	md.AdditionalHelp("arguments: [output file]. the graph is written in the graphviz dot format")

	prj, err := openMode(md, opts, 0, 1)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	b, err := pipeline.NewBuild(prj.env, prj.run)
	if err != nil {
		return err
	}

	g, err := b.Plan()
	if err != nil {
		return err
	}

	if fn := md.GetArg(0); fn != "" {
		f, err := os.Create(fn)
		if err != nil {
			return curated.Errorf("graph: %v", err)
		}
		defer f.Close()
		output = f
	}

	return g.Dump(output)
}

func manifest(md *modalflag.Modes, output io.Writer) error {
	md.NewMode()
	opts := addOptions(md)

	prj, err := openMode(md, opts, 0, 0)
	if err != nil || prj == nil {
		return err
	}
	defer prj.close()

	store, err := artifacts.NewStore(prj.env)
	if err != nil {
		return err
	}

	m, err := pipeline.LoadManifest(store.BuildDir())
	if err != nil {
		return err
	}

	m.List(output)

	return nil
}

func showVersion(md *modalflag.Modes, output io.Writer) error {
	md.NewMode()
	revision := md.AddBool("revision", false, "display revision information")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	v, r, _ := version.Version()
	if *revision {
		fmt.Fprintf(output, "%s %s (%s)\n", version.ApplicationName, v, r)
	} else {
		fmt.Fprintf(output, "%s %s\n", version.ApplicationName, v)
	}

	return nil
}
