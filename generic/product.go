/*
product.go - Product line registration and lookup

PURPOSE:
  Provides a registry for product packages (vehicle, health, travel) to
  register themselves. The service dispatches on Contract.Product to find
  the lifecycle variant and contract-number prefix, while the generic
  package stays ignorant of any product's details.

HOW IT WORKS:
  1. Product packages implement ProductLine
  2. They register on init()
  3. ContractService looks them up by ProductID

USAGE:
  // In vehicle/contract.go
  func init() { generic.RegisterProduct(Line{}) }

  // In the service
  line, err := generic.LookupProduct(c.Product)
  tr, err := line.Lifecycle().Apply(c, target, actor, note, now)

SEE ALSO:
  - lifecycle.go: Lifecycle variants
  - vehicle/, health/, travel/: ProductLine implementations
*/
package generic

import (
	"fmt"
	"sort"
	"sync"
)

// ProductLine is implemented by each product package.
type ProductLine interface {
	// ProductID returns the stable product identifier.
	ProductID() ProductID

	// NumberPrefix is the prefix of generated contract numbers.
	NumberPrefix() string

	// Lifecycle returns the status graph and preconditions for this line.
	Lifecycle() *Lifecycle
}

// =============================================================================
// PRODUCT REGISTRY
// =============================================================================

var (
	productRegistry = make(map[ProductID]ProductLine)
	registryMu      sync.RWMutex
)

// RegisterProduct adds a product line to the global registry.
// Call this from product package init() functions.
func RegisterProduct(p ProductLine) {
	registryMu.Lock()
	defer registryMu.Unlock()
	productRegistry[p.ProductID()] = p
}

// LookupProduct finds a registered product line.
func LookupProduct(id ProductID) (ProductLine, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := productRegistry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, nil
}

// ListProducts returns all registered product lines sorted by ID.
func ListProducts() []ProductLine {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]ProductLine, 0, len(productRegistry))
	for _, p := range productRegistry {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID() < result[j].ProductID() })
	return result
}
