package exporters

import "sync"

// Vals is the shared scratch state chunks pass forward through a run.
// Keys live under a namespace per exporter so compound jobs do not
// trample each other's state.
//
// Merge semantics depend on the value type. Lists append with
// duplicates dropped, maps merge key by key, and anything else
// overwrites.
type Vals struct {
	mu   sync.Mutex
	data map[string]map[string]interface{}
}

func NewVals() *Vals {
	return &Vals{data: make(map[string]map[string]interface{})}
}

// Get returns the value stored under namespace/key.
func (v *Vals) Get(namespace, key string) (interface{}, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ns, ok := v.data[namespace]
	if !ok {
		return nil, false
	}
	value, ok := ns[key]
	return value, ok
}

// GetList returns the list stored under namespace/key, or nil.
func (v *Vals) GetList(namespace, key string) []interface{} {
	value, ok := v.Get(namespace, key)
	if !ok {
		return nil
	}
	list, _ := value.([]interface{})
	return list
}

// Set merges one value into the store.
func (v *Vals) Set(namespace, key string, value interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.merge(namespace, key, value)
}

// MergeAll merges a whole namespace worth of values at once.
func (v *Vals) MergeAll(namespace string, values map[string]interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, value := range values {
		v.merge(namespace, key, value)
	}
}

// Namespace returns a copy of everything stored under the namespace.
func (v *Vals) Namespace(namespace string) map[string]interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()

	ns, ok := v.data[namespace]
	if !ok {
		return nil
	}
	copied := make(map[string]interface{}, len(ns))
	for key, value := range ns {
		copied[key] = value
	}
	return copied
}

func (v *Vals) merge(namespace, key string, value interface{}) {
	ns, ok := v.data[namespace]
	if !ok {
		ns = make(map[string]interface{})
		v.data[namespace] = ns
	}

	existing, ok := ns[key]
	if !ok {
		ns[key] = value
		return
	}

	switch existingVal := existing.(type) {
	case []interface{}:
		incoming, ok := value.([]interface{})
		if !ok {
			ns[key] = value
			return
		}
		seen := make(map[interface{}]bool, len(existingVal))
		for _, item := range existingVal {
			if isHashable(item) {
				seen[item] = true
			}
		}
		merged := existingVal
		for _, item := range incoming {
			if isHashable(item) && seen[item] {
				continue
			}
			if isHashable(item) {
				seen[item] = true
			}
			merged = append(merged, item)
		}
		ns[key] = merged

	case map[string]interface{}:
		incoming, ok := value.(map[string]interface{})
		if !ok {
			ns[key] = value
			return
		}
		for k, item := range incoming {
			existingVal[k] = item
		}

	default:
		ns[key] = value
	}
}

func isHashable(value interface{}) bool {
	switch value.(type) {
	case []interface{}, map[string]interface{}:
		return false
	default:
		return true
	}
}
