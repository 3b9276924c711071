package di_test

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/gocrud/container/di"
)

// fakeDirectory 是一个内存中的组件目录，同时充当 ComponentContext
type fakeDirectory struct {
	mu      sync.Mutex
	values  map[string]any
	lookups map[string]int
}

func newDirectory(values map[string]any) *fakeDirectory {
	if values == nil {
		values = map[string]any{}
	}
	return &fakeDirectory{values: values, lookups: map[string]int{}}
}

func (d *fakeDirectory) Exists(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.values[name]
	return ok
}

func (d *fakeDirectory) NamesOf(t reflect.Type) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for name, v := range d.values {
		if v != nil && reflect.TypeOf(v).AssignableTo(t) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (d *fakeDirectory) Component() string { return "test" }
func (d *fakeDirectory) Reference() any    { return nil }

func (d *fakeDirectory) Lookup(name string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups[name]++
	v, ok := d.values[name]
	if !ok {
		return nil, fmt.Errorf("component %q not found", name)
	}
	return v, nil
}

// countingStrategy 记录调用次数并返回预设结果
type countingStrategy struct {
	target   di.Target
	optional bool
	deps     []string
	inj      *di.Injectant
	err      error

	mu    sync.Mutex
	calls int
}

func (s *countingStrategy) Target() di.Target { return s.target }
func (s *countingStrategy) Optional() bool    { return s.optional }

func (s *countingStrategy) Dependencies() ([]string, error) {
	return s.deps, s.err
}

func (s *countingStrategy) Injectant(di.ComponentContext) (*di.Injectant, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.inj, s.err
}

func (s *countingStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type Database struct {
	DSN string
}

type Cache struct {
	Size int
}

type Dog struct{ Name string }
type Cat struct{ Name string }

type Widget struct {
	Name string
}

func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

type Service struct {
	DB      *Database `di:"db"`
	Cache   *Cache    `di:"?"`
	Label   string    `di:"info=label|value=default"`
	Retries int       `di:"value=3"`

	db2     *Database
	timeout int
	port    int
}

func (s *Service) SetSecondary(db *Database) {
	s.db2 = db
}

func (s *Service) Configure(timeout, port int) error {
	if port < 0 {
		return fmt.Errorf("bad port %d", port)
	}
	s.timeout = timeout
	s.port = port
	return nil
}

func fieldTarget[T any](name string) di.Target {
	owner := reflect.TypeOf((*T)(nil)).Elem()
	f, _ := owner.FieldByName(name)
	return di.NewFieldTarget(owner, name, f.Type)
}
