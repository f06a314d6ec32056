package resource

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Sorts controls how Registry.All orders its result (resources.h's Sorts
// flags): DisplayName sorts case-insensitively by display name;
// DefaultFirst puts the type's standard resource, if any, at the front.
type Sorts int

const (
	NoSort      Sorts = 0
	DisplayName Sorts = 1 << iota
	DefaultFirst
)

// DestOption controls Registry.Destination (resources.h's DestOptions).
type DestOption int

const (
	NoDestOption    DestOption = 0
	NoResourcePrompt DestOption = 1 << iota
	UseOnlyResource
)

// PromptFunc asks the user to pick a writable resource for t among
// candidates, returning the chosen one and cancelled=true if they backed
// out (§4.5's "prompt unless NoResourcePrompt").
type PromptFunc func(t AlarmType, candidates []*Resource) (chosen *Resource, cancelled bool)

// Registry is the process-wide collection of resources (resources.h's
// Resources singleton), generalising the teacher's MemoryEventStorage
// calendars map (a bare map[path]*Calendar with no enabled/standard
// concept) into the full selection/arbitration model §4.5 requires.
type Registry struct {
	mu        sync.RWMutex
	resources map[int64]*Resource
	standard  map[AlarmType]int64 // type -> resource id, 0 = none
	nextID    int64

	prompt PromptFunc
}

func NewRegistry(prompt PromptFunc) *Registry {
	return &Registry{
		resources: make(map[int64]*Resource),
		standard:  make(map[AlarmType]int64),
		prompt:    prompt,
	}
}

// Add registers r, assigning it the next available ID if it has none.
func (reg *Registry) Add(r *Resource) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r.id == 0 {
		reg.nextID++
		r.id = reg.nextID
	} else if r.id > reg.nextID {
		reg.nextID = r.id
	}
	reg.resources[r.id] = r
}

func (reg *Registry) Resource(id int64) (*Resource, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.resources[id]
	return r, ok
}

func (reg *Registry) ResourceForConfigName(name string) (*Resource, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, r := range reg.resources {
		if r.configName == name {
			return r, true
		}
	}
	return nil, false
}

// Remove drops id from the registry and clears any standard-resource
// mapping pointing at it.
func (reg *Registry) Remove(id int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.resources, id)
	for t, sid := range reg.standard {
		if sid == id {
			delete(reg.standard, t)
		}
	}
}

// All returns every registered resource matching alarmType (EmptyType
// matches all), ordered per sorting.
func (reg *Registry) All(alarmType AlarmType, sorting Sorts) []*Resource {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var standardID int64
	if sorting&DefaultFirst != 0 && alarmType != EmptyType {
		standardID = reg.standard[alarmType]
	}
	out := make([]*Resource, 0, len(reg.resources))
	var first *Resource
	for _, r := range reg.resources {
		if alarmType != EmptyType && r.AlarmTypes()&alarmType == 0 {
			continue
		}
		if r.id == standardID {
			first = r
			continue
		}
		out = append(out, r)
	}
	if sorting&DisplayName != 0 {
		sort.Slice(out, func(i, j int) bool {
			return strings.ToLower(out[i].displayName) < strings.ToLower(out[j].displayName)
		})
	}
	if first != nil {
		out = append([]*Resource{first}, out...)
	}
	return out
}

// Enabled returns every resource enabled for alarmType, optionally
// restricted to writable ones.
func (reg *Registry) Enabled(alarmType AlarmType, writableOnly bool) []*Resource {
	var out []*Resource
	for _, r := range reg.All(alarmType, NoSort) {
		if !r.IsEnabled(alarmType) {
			continue
		}
		if writableOnly && !r.IsWritable(alarmType) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Standard returns the type's designated standard resource, if any.
func (reg *Registry) Standard(t AlarmType, useOnlyResourceIfSole bool) (*Resource, bool) {
	reg.mu.RLock()
	id, has := reg.standard[t]
	reg.mu.RUnlock()
	if has {
		if r, ok := reg.Resource(id); ok {
			return r, true
		}
	}
	if !useOnlyResourceIfSole {
		return nil, false
	}
	writable := reg.Enabled(t, true)
	if len(writable) == 1 {
		reg.SetStandard(writable[0], t, true)
		return writable[0], true
	}
	return nil, false
}

func (reg *Registry) IsStandard(r *Resource, t AlarmType) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.standard[t] == r.id
}

// SetStandard designates (or revokes) r as the standard resource for t.
// Setting true clears the bit on whichever other resource previously held
// it (resources.h: "at most one standard resource per type") and fails if
// r is not enabled+writable for t.
func (reg *Registry) SetStandard(r *Resource, t AlarmType, standard bool) error {
	if standard && !r.IsWritable(t) {
		return fmt.Errorf("resource: %s is not writable for %v, cannot be standard", r.location, t)
	}
	reg.mu.Lock()
	if standard {
		if prevID, ok := reg.standard[t]; ok && prevID != r.id {
			if prev, ok := reg.resources[prevID]; ok {
				prev.configSetStandard(t, false)
			}
		}
		reg.standard[t] = r.id
	} else if reg.standard[t] == r.id {
		delete(reg.standard, t)
	}
	reg.mu.Unlock()
	r.configSetStandard(t, standard)
	return nil
}

// Destination implements resources.h's destination(): the resource a new
// event of type t should be saved to (§4.5). Selection order: (1) the
// sole enabled writable candidate, when UseOnlyResource is set; (2) the
// standard resource for t, if configured and writable; (3) otherwise
// prompt the user unless NoResourcePrompt is set, in which case the
// first writable candidate is used silently. cancelled is true only when
// a prompt was shown and the user backed out.
func (reg *Registry) Destination(t AlarmType, opts DestOption) (r *Resource, cancelled bool) {
	candidates := reg.Enabled(t, true)

	if opts&UseOnlyResource != 0 && len(candidates) == 1 {
		return candidates[0], false
	}
	if std, ok := reg.Standard(t, false); ok && std.IsWritable(t) {
		return std, false
	}
	if len(candidates) == 0 {
		return nil, false
	}
	if opts&NoResourcePrompt != 0 || reg.prompt == nil {
		return candidates[0], false
	}
	return reg.prompt(t, candidates)
}

// ResourceForEvent finds the resource holding the event named by a
// "[rid:]eid" identifier, per eventid.h's extractIDs convention: rid may
// be a resource's config name or its numeric ID.
func (reg *Registry) ResourceForEvent(identifier string) (*Resource, string, bool) {
	ridPart, eid := splitEventIdentifier(identifier)
	if ridPart == "" {
		reg.mu.RLock()
		defer reg.mu.RUnlock()
		for _, r := range reg.resources {
			if r.Contains(eid) {
				return r, eid, true
			}
		}
		return nil, eid, false
	}
	if id, err := strconv.ParseInt(ridPart, 10, 64); err == nil {
		if r, ok := reg.Resource(id); ok {
			return r, eid, true
		}
	}
	if r, ok := reg.ResourceForConfigName(ridPart); ok {
		return r, eid, true
	}
	return nil, eid, false
}

func splitEventIdentifier(s string) (rid, eid string) {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// AllPopulated reports whether every registered, enabled resource has
// finished loading (resources.h's allPopulated, used to gate scheduler
// start-up until every calendar has been read).
func (reg *Registry) AllPopulated() bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, r := range reg.resources {
		if r.EnabledTypes() != EmptyType && !r.IsPopulated() {
			return false
		}
	}
	return true
}

// LoadAll loads every enabled resource, continuing past individual
// failures and returning the first error encountered (if any) after all
// have been attempted.
func (reg *Registry) LoadAll(force bool) error {
	reg.mu.RLock()
	all := make([]*Resource, 0, len(reg.resources))
	for _, r := range reg.resources {
		all = append(all, r)
	}
	reg.mu.RUnlock()

	var first error
	for _, r := range all {
		if err := r.Load(force); err != nil && first == nil {
			first = err
		}
	}
	return first
}
