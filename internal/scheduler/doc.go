// Package scheduler decides which modules a run must consider and in what
// order.
//
// # Why Scheduler Exists
//
// The scheduler separates "what runs, in which order" (planning) from "how
// a module is executed" (executor). Given a request it produces a Plan: a
// deterministic sequence of scheduling units scoped to the part of the
// network the request affects.
//
// # How It Works
//
//  1. Build the module dependency graph without loop back-edges and reject
//     it if it still has a cycle (CycleDetected is fatal for a run).
//  2. Compute the scope: everything for a full run; otherwise the modules
//     reachable backward from the targets plus those reachable forward from
//     the explicitly dirty modules.
//  3. Replace every Loop-start/Loop-end body with a single unit so a loop is
//     ordered as one node, then sort the contracted graph topologically
//     with ties broken by creation order.
//
// # Relationship with Other Components
//
//   - **Network:** source of the graph, loop pairs and module policies
//   - **Executor:** walks the Plan and applies the per-module rules
//   - **Session:** builds Requests from user actions and feedback events
package scheduler
