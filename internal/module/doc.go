// Package module defines the capability interface every module variant
// implements, together with the per-instance pieces the network keeps for
// it: declared ports, the parameter store and the execution status.
//
// The scheduler depends only on the Module interface. Concrete modules live
// under the top-level modules/ directory and are constructed by the registry.
package module
