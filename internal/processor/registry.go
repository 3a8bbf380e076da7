// Package processor contains the disbursement rail implementations and
// the registry that routes payout methods to them.
package processor

import (
	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
	"payout-engine/pkg/apperror"
)

// Registry implements ports.ProcessorRegistry with a static method map.
type Registry struct {
	procs map[domain.PayoutMethod]ports.Processor
}

// NewRegistry creates a registry from the given processors.
func NewRegistry(procs ...ports.Processor) *Registry {
	r := &Registry{procs: make(map[domain.PayoutMethod]ports.Processor, len(procs))}
	for _, p := range procs {
		r.procs[p.Method()] = p
	}
	return r
}

// Register adds or replaces the processor for its method.
func (r *Registry) Register(p ports.Processor) {
	r.procs[p.Method()] = p
}

// Resolve returns the processor registered for the method.
func (r *Registry) Resolve(method domain.PayoutMethod) (ports.Processor, error) {
	p, ok := r.procs[method]
	if !ok {
		return nil, apperror.ErrUnknownMethod(string(method))
	}
	return p, nil
}
