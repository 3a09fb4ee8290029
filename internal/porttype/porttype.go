// Package porttype defines the type tags carried by module ports and the
// registry that decides whether an output of one type may feed an input of
// another.
package porttype

import (
	"sync"
)

// Tag names the kind of datum a port carries.
type Tag string

const (
	Any            Tag = "Any"
	Matrix         Tag = "Matrix"
	DenseMatrix    Tag = "DenseMatrix"
	ColumnMatrix   Tag = "ColumnMatrix"
	SparseMatrix   Tag = "SparseMatrix"
	Field          Tag = "Field"
	GeometryObject Tag = "GeometryObject"
	ColorMap       Tag = "ColorMap"
	String         Tag = "String"
	Scalar         Tag = "Scalar"
	Transform      Tag = "Transform"
)

// Predicate reports whether a datum of type src may be delivered to a port of type dst.
type Predicate func(src, dst Tag) bool

// Registry holds the compatibility policy used at connect time. It is safe
// for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	conversions map[Tag]map[Tag]struct{}
	predicate   Predicate
}

// NewRegistry returns a registry with the default matrix coercions installed:
// every concrete matrix flavour may feed a generic Matrix port and a generic
// Matrix may feed a DenseMatrix port.
func NewRegistry() *Registry {
	r := &Registry{conversions: make(map[Tag]map[Tag]struct{})}
	r.AllowConversion(DenseMatrix, Matrix)
	r.AllowConversion(ColumnMatrix, Matrix)
	r.AllowConversion(SparseMatrix, Matrix)
	r.AllowConversion(ColumnMatrix, DenseMatrix)
	r.AllowConversion(Matrix, DenseMatrix)
	return r
}

// AllowConversion registers src as deliverable to dst.
func (r *Registry) AllowConversion(src, dst Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conversions[src] == nil {
		r.conversions[src] = make(map[Tag]struct{})
	}
	r.conversions[src][dst] = struct{}{}
}

// SetPredicate replaces the built-in policy entirely. A nil predicate
// restores it.
func (r *Registry) SetPredicate(p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicate = p
}

// Compatible reports whether an output of type src may be connected to an
// input of type dst.
func (r *Registry) Compatible(src, dst Tag) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.predicate != nil {
		return r.predicate(src, dst)
	}
	if src == dst || dst == Any {
		return true
	}
	_, ok := r.conversions[src][dst]
	return ok
}
