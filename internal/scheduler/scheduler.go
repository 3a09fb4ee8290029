package scheduler

import (
	"context"
	"fmt"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/dag"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
)

// Request selects what a run covers. An empty request covers the whole
// network.
type Request struct {
	// Targets are modules whose results are wanted; their upstream is in scope.
	Targets []moduleid.ID
	// Dirty are modules explicitly marked for re-execution; their downstream
	// is in scope.
	Dirty []moduleid.ID
}

// Full reports whether the request covers the whole network.
func (r Request) Full() bool {
	return len(r.Targets) == 0 && len(r.Dirty) == 0
}

// Loop describes a loop unit.
type Loop struct {
	Start moduleid.ID
	End   moduleid.ID
	// Body lists every module between Start and End, both included, in
	// execution order.
	Body []moduleid.ID
}

// Contains reports whether id belongs to the loop body.
func (l *Loop) Contains(id moduleid.ID) bool {
	for _, m := range l.Body {
		if m == id {
			return true
		}
	}
	return false
}

// Unit is one step of a plan: a single module, or a whole loop.
type Unit struct {
	Module moduleid.ID
	Loop   *Loop
}

// Modules lists the modules the unit executes.
func (u Unit) Modules() []moduleid.ID {
	if u.Loop != nil {
		return u.Loop.Body
	}
	return []moduleid.ID{u.Module}
}

// Plan is the ordered work of one run.
type Plan struct {
	Units []Unit
	Scope map[moduleid.ID]bool
	// Forced modules execute even when up to date.
	Forced map[moduleid.ID]bool
}

// Order flattens the plan into the module visit order.
func (p *Plan) Order() []moduleid.ID {
	var out []moduleid.ID
	for _, u := range p.Units {
		out = append(out, u.Modules()...)
	}
	return out
}

// Scheduler builds plans for a network.
type Scheduler struct {
	net *network.Network
}

// New creates a scheduler for net.
func New(net *network.Network) *Scheduler {
	return &Scheduler{net: net}
}

// Plan computes the work for req. It fails when a requested module does not
// exist, when the graph without back-edges has a cycle, or when loop bodies
// are malformed.
func (s *Scheduler) Plan(ctx context.Context, req Request) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	for _, id := range append(append([]moduleid.ID(nil), req.Targets...), req.Dirty...) {
		if _, ok := s.net.Module(ctx, id); !ok {
			return nil, fmt.Errorf("plan: module '%s': %w", id, network.ErrNotFound)
		}
	}

	g := s.net.Graph(ctx, false)
	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("plan: %w: %v", network.ErrCycleDetected, err)
	}
	fullOrder, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("plan: %w: %v", network.ErrCycleDetected, err)
	}

	loops, err := s.loops(ctx, g, fullOrder)
	if err != nil {
		return nil, err
	}

	scope := s.scope(g, req, loops)

	groups := make(map[moduleid.ID][]moduleid.ID, len(loops))
	byStart := make(map[moduleid.ID]*Loop, len(loops))
	for _, l := range loops {
		groups[l.Start] = l.Body
		byStart[l.Start] = l
	}
	order, err := g.Contract(groups).TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("plan: %w: %v", network.ErrCycleDetected, err)
	}

	plan := &Plan{Scope: scope, Forced: make(map[moduleid.ID]bool, len(req.Dirty))}
	for _, id := range req.Dirty {
		plan.Forced[id] = true
	}
	for _, id := range order {
		if !scope[id] {
			continue
		}
		if l, ok := byStart[id]; ok {
			plan.Units = append(plan.Units, Unit{Module: id, Loop: l})
			continue
		}
		plan.Units = append(plan.Units, Unit{Module: id})
	}

	logger.Debug("Plan computed.", "units", len(plan.Units), "scope", len(scope), "full", req.Full())
	return plan, nil
}

// loops resolves the body of every registered loop pair.
func (s *Scheduler) loops(ctx context.Context, g *dag.Graph[moduleid.ID], fullOrder []moduleid.ID) ([]*Loop, error) {
	var loops []*Loop
	owner := make(map[moduleid.ID]moduleid.ID)

	for _, pair := range s.net.LoopPairs(ctx) {
		fwd := g.Downstream(pair.Start)
		if !fwd[pair.End] {
			return nil, fmt.Errorf("plan: loop %s..%s: %w: end is not downstream of start", pair.Start, pair.End, network.ErrLoopPair)
		}
		back := g.Upstream(pair.End)

		l := &Loop{Start: pair.Start, End: pair.End}
		for _, id := range fullOrder {
			if !fwd[id] || !back[id] {
				continue
			}
			if other, taken := owner[id]; taken {
				return nil, fmt.Errorf("plan: loop %s..%s: %w: module %s already belongs to loop starting at %s",
					pair.Start, pair.End, network.ErrLoopPair, id, other)
			}
			owner[id] = pair.Start
			l.Body = append(l.Body, id)
		}
		loops = append(loops, l)
	}
	return loops, nil
}

// scope computes the modules a request covers. A loop is in scope as a
// whole; for targeted runs everything feeding it is too.
func (s *Scheduler) scope(g *dag.Graph[moduleid.ID], req Request, loops []*Loop) map[moduleid.ID]bool {
	if req.Full() {
		all := make(map[moduleid.ID]bool)
		for _, id := range g.Nodes() {
			all[id] = true
		}
		return all
	}

	scope := g.Upstream(req.Targets...)
	for id := range g.Downstream(req.Dirty...) {
		scope[id] = true
	}

	for changed := true; changed; {
		changed = false
		for _, l := range loops {
			if !anyIn(scope, l.Body) {
				continue
			}
			need := l.Body
			if len(req.Targets) > 0 {
				need = keys(g.Upstream(l.Body...))
			}
			for _, id := range need {
				if !scope[id] {
					scope[id] = true
					changed = true
				}
			}
		}
	}
	return scope
}

func anyIn(set map[moduleid.ID]bool, ids []moduleid.ID) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

func keys(set map[moduleid.ID]bool) []moduleid.ID {
	out := make([]moduleid.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
