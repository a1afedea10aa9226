// Package driver implements the driver registry: drivers are
// registered under a name and under each declared (mfct, media, version)
// detection tuple, with wildcard and most-specific-match-wins resolution.
package driver

import (
	"fmt"
	"sync"

	"github.com/serebryakov7/wmbusmeters/internal/field"
	"github.com/serebryakov7/wmbusmeters/internal/lookup"
)

// Wildcard matches any media or version in a detection tuple.
const Wildcard uint16 = 0xFFFF

// Tuple is one (manufacturer, media, version) detection key a driver can
// be registered under.
type Tuple struct {
	Mfct    uint16
	Media   uint16
	Version uint16
}

// specificity scores a tuple by how many non-wildcard fields it pins,
// used to resolve overlapping registrations: the most-specific match
// wins.
func (t Tuple) specificity() int {
	n := 0
	if t.Media != Wildcard {
		n++
	}
	if t.Version != Wildcard {
		n++
	}
	return n
}

func (t Tuple) matches(mfct, media, version uint16) bool {
	if t.Mfct != mfct {
		return false
	}
	if t.Media != Wildcard && t.Media != media {
		return false
	}
	if t.Version != Wildcard && t.Version != version {
		return false
	}
	return true
}

// Info is the static declaration of a driver: name, detection tuples,
// field list; the behavioral part (ProcessContent) is carried alongside
// as a function value since Go has no virtual dispatch.
type Info struct {
	Name          string
	Detections    []Tuple
	MeterType     string
	LinkModes     []string
	SecurityModes []string
	Fields        []field.Info
	DefaultFields []string // tabular output order
	MfctStatus    lookup.Lookup

	// ProcessContent handles manufacturer-proprietary payloads that
	// bypass the generic DIF/VIF walk. handled is
	// false when this driver has no proprietary decoder and the
	// orchestrator should fall through to the normal DV parser.
	ProcessContent func(content []byte) (values []field.Value, handled bool, err error)
}

// Registry is the process-wide driver registry: built once at startup,
// read-mostly thereafter, guarded so concurrent decode threads see a
// consistent snapshot.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]*Info
	detections []registeredTuple
}

type registeredTuple struct {
	tuple Tuple
	name  string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Info{}}
}

// Register records info under its name and each declared detection
// tuple. Registration is idempotent within a name (re-registering the
// same name replaces its Info and detections). Registering two distinct
// names under tuples that are equally specific and collide at lookup
// time is a registration error: ties are a registration error.
func (r *Registry) Register(info Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[info.Name]; ok && existing != nil {
		r.removeDetectionsLocked(info.Name)
	}

	for _, t := range info.Detections {
		for _, d := range r.detections {
			if d.name == info.Name {
				continue
			}
			sameMedia := d.tuple.Media == t.Media || d.tuple.Media == Wildcard || t.Media == Wildcard
			sameVersion := d.tuple.Version == t.Version || d.tuple.Version == Wildcard || t.Version == Wildcard
			if d.tuple.Mfct == t.Mfct && sameMedia && sameVersion && d.tuple.specificity() == t.specificity() {
				return fmt.Errorf("driver: registration conflict: %q and %q both declare tuple %+v", d.name, info.Name, t)
			}
		}
	}

	cp := info
	r.byName[info.Name] = &cp
	for _, t := range info.Detections {
		r.detections = append(r.detections, registeredTuple{tuple: t, name: info.Name})
	}
	return nil
}

func (r *Registry) removeDetectionsLocked(name string) {
	kept := r.detections[:0]
	for _, d := range r.detections {
		if d.name != name {
			kept = append(kept, d)
		}
	}
	r.detections = kept
}

// ByName returns the driver registered under name, if any.
func (r *Registry) ByName(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byName[name]
	return info, ok
}

// Resolve finds the most-specific driver matching (mfct, media, version):
// exact triple, falling back to "unknown"
// when no driver matches. When several detections match, the one with
// the highest specificity() wins; specificity ties should not occur
// since Register rejects them, but Resolve breaks any that do slip
// through by preferring the first registered.
func (r *Registry) Resolve(mfct, media, version uint16) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *registeredTuple
	for i := range r.detections {
		d := &r.detections[i]
		if !d.tuple.matches(mfct, media, version) {
			continue
		}
		if best == nil || d.tuple.specificity() > best.tuple.specificity() {
			best = d
		}
	}
	if best == nil {
		return nil, false
	}
	info := r.byName[best.name]
	return info, info != nil
}

// Names returns every registered driver name, for CLI listing/iteration.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
