package challenges

import (
	"sync"

	"github.com/crytic/chainfixture/scenario"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrUnknownChallenge is returned when a challenge name is not registered.
var ErrUnknownChallenge = errors.New("unknown challenge")

var (
	// registry maps challenge names to their scenarios.
	registry = make(map[string]scenario.Scenario)

	// registryLock guards registry.
	registryLock sync.RWMutex
)

// register adds a challenge to the registry. Registering a name twice panics.
func register(s scenario.Scenario) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, exists := registry[s.Name]; exists {
		panic("challenge registered twice: " + s.Name)
	}
	registry[s.Name] = s
}

// Names returns the names of all registered challenges, sorted.
func Names() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := maps.Keys(registry)
	slices.Sort(names)
	return names
}

// All returns every registered challenge, sorted by name.
func All() []scenario.Scenario {
	names := Names()

	registryLock.RLock()
	defer registryLock.RUnlock()
	all := make([]scenario.Scenario, 0, len(names))
	for _, name := range names {
		all = append(all, registry[name])
	}
	return all
}

// ByName returns the challenge registered under name.
func ByName(name string) (scenario.Scenario, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	s, ok := registry[name]
	if !ok {
		return scenario.Scenario{}, errors.Wrapf(ErrUnknownChallenge, "%q", name)
	}
	return s, nil
}

// Select returns the named challenges in the order given, or every challenge if names is empty.
func Select(names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}

	selected := make([]scenario.Scenario, 0, len(names))
	for _, name := range names {
		s, err := ByName(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, s)
	}
	return selected, nil
}
