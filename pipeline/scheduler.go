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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Sentinel error patterns for running the graph.
const (
	OrderingViolation = "pipeline: %s: input not ready (%s)"
	MissingOutput     = "pipeline: %s: output not written (%s)"
	StageFailed       = "pipeline: %s: %s: %v"
)

// Outcome of a node after the graph has run.
type Outcome int

// List of valid Outcome values.
const (
	NotRun Outcome = iota
	Completed
	Failed

	// a dependency of the node failed or the build was interrupted
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case NotRun:
		return "not run"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Status of a single node.
type Status struct {
	Node     *Node
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Report is the status of every node of the graph, in the order they were
// started.
type Report []Status

// Find the status of the node with the ID.
func (rep Report) Find(id string) (Status, bool) {
	for _, s := range rep {
		if s.Node.ID() == id {
			return s, true
		}
	}
	return Status{}, false
}

// Count returns the number of nodes with the outcome.
func (rep Report) Count(o Outcome) int {
	n := 0
	for _, s := range rep {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Write a summary of the report to w.
func (rep Report) Write(w io.Writer) {
	for _, s := range rep {
		switch s.Outcome {
		case Completed:
			fmt.Fprintf(w, "%-10s %-40s %v\n", s.Node.Stage, s.Node.Artifact, s.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "%-10s %-40s %s\n", s.Node.Stage, s.Node.Artifact, s.Outcome)
		}
	}
}

// Scheduler runs a graph.
type Scheduler struct {
	// maximum number of nodes running at once
	Jobs int

	Perm logger.Permission
}

// Run the graph. The returned error is the first failure of a node. The
// report is always returned, even on error.
func (s *Scheduler) Run(ctx context.Context, g *Graph) (Report, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	jobs := s.Jobs
	if jobs < 1 {
		jobs = 1
	}
	sem := semaphore.NewWeighted(int64(jobs))

	rep := make(Report, len(order))
	index := make(map[*Node]int, len(order))
	done := make(map[*Node]chan struct{}, len(order))
	deps := make(map[*Node][]*Node, len(order))

	for i, n := range order {
		rep[i].Node = n
		index[n] = i
		done[n] = make(chan struct{})
		deps[n], _ = g.Dependencies(n)
	}

	logger.Logf(s.Perm, "scheduler", "%d nodes, %d jobs", len(order), jobs)

	var grp errgroup.Group

	for i, n := range order {
		st := &rep[i]
		n := n

		grp.Go(func() error {
			defer close(done[n])

			// the status of a dependency is safe to read once its done
			// channel is closed
			for _, d := range deps[n] {
				<-done[d]
				if rep[index[d]].Outcome != Completed {
					st.Outcome = Cancelled
					logger.Logf(s.Perm, "scheduler", "%s: cancelled (%s)", n, d)
					return nil
				}
			}

			if err := ctx.Err(); err != nil {
				st.Outcome = Cancelled
				st.Err = err
				return nil
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				st.Outcome = Cancelled
				st.Err = err
				return nil
			}
			defer sem.Release(1)

			start := time.Now()
			err := s.runNode(ctx, n)
			st.Duration = time.Since(start)

			if err != nil {
				st.Outcome = Failed
				st.Err = curated.Errorf(StageFailed, n.Stage, n.Artifact, err)
				logger.Log(s.Perm, n.Stage, st.Err)
				return st.Err
			}

			st.Outcome = Completed
			return nil
		})
	}

	err = grp.Wait()
	if err == nil {
		err = ctx.Err()
	}

	return rep, err
}

func (s *Scheduler) runNode(ctx context.Context, n *Node) error {
	for _, i := range n.Inputs {
		if _, err := os.Stat(i); err != nil {
			return curated.Errorf(OrderingViolation, n.ID(), i)
		}
	}

	if n.run != nil {
		if err := n.run(ctx); err != nil {
			return err
		}
	}

	for _, o := range n.Outputs {
		if _, err := os.Stat(o); err != nil {
			return curated.Errorf(MissingOutput, n.ID(), o)
		}
	}

	return nil
}
