package validation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownSchema 请求了未注册的 Schema
var ErrUnknownSchema = errors.New("unknown validation schema")

// Registry 按名称索引的 Schema 集合，并发安全
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register 注册 Schema；名称重复时返回错误
func (r *Registry) Register(s *Schema) error {
	if s == nil || s.name == "" {
		return fmt.Errorf("schema must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.name]; exists {
		return fmt.Errorf("schema %q already registered", s.name)
	}
	r.schemas[s.name] = s
	return nil
}

// MustRegister 注册多个 Schema，失败时 panic（用于包初始化）
func (r *Registry) MustRegister(schemas ...*Schema) *Registry {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Get 查找 Schema
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names 返回已注册名称（字典序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate 按名称校验载荷
func (r *Registry) Validate(name string, in Input) (Result, error) {
	s, ok := r.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return s.Validate(in), nil
}
