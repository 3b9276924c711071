package di_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/gocrud/container/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, reg *di.Registry, def *di.Definition, ctx di.ComponentContext) any {
	t.Helper()
	ci, err := reg.ConstructorInjection(def, ctx)
	require.NoError(t, err)
	require.NotNil(t, ci)
	instance, err := ci.Invoke()
	require.NoError(t, err)

	setters, err := reg.SetterInjections(def, ctx)
	require.NoError(t, err)
	for _, si := range setters {
		require.NoError(t, si.Apply(instance))
	}
	return instance
}

func TestRegistry_WidgetLiteralConstructor(t *testing.T) {
	reg := di.NewRegistry(nil)
	def := di.Describe[Widget]("widget",
		di.WithConstructor(NewWidget),
		di.WithBindings(di.BindConstructor(di.Value("w1"))),
	)

	ci, err := reg.ConstructorInjection(def, nil)
	require.NoError(t, err)
	require.NotNil(t, ci)
	assert.False(t, ci.Static())

	w, err := ci.Invoke()
	require.NoError(t, err)
	assert.Equal(t, &Widget{Name: "w1"}, w)
}

func TestRegistry_OptionalConstructorWithoutWiring(t *testing.T) {
	reg := di.NewRegistry(newDirectory(nil))
	def := di.Describe[Widget]("widget",
		di.WithConstructor(NewWidget),
		di.OptionalConstructor(),
	)

	ci, err := reg.ConstructorInjection(def, newDirectory(nil))
	require.NoError(t, err)
	assert.Nil(t, ci)
}

func TestRegistry_ConstructorParamsDefaultToType(t *testing.T) {
	db := &Database{DSN: "mem"}
	dir := newDirectory(map[string]any{"db": db})
	reg := di.NewRegistry(dir)
	def := di.Describe[Service]("svc", di.WithConstructor(func(d *Database) *Service {
		return &Service{db2: d}
	}))

	ci, err := reg.ConstructorInjection(def, dir)
	require.NoError(t, err)
	svc, err := ci.Invoke()
	require.NoError(t, err)
	assert.Same(t, db, svc.(*Service).db2)

	deps, err := reg.Dependencies(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, deps)
}

func TestRegistry_EndToEndService(t *testing.T) {
	db := &Database{DSN: "primary"}
	backup := &Database{DSN: "backup"}
	dir := newDirectory(map[string]any{"db": db, "backup": backup})
	reg := di.NewRegistry(dir)

	def := di.Describe[Service]("svc",
		di.WithProperty("label", "from-info"),
		di.WithBindings(
			di.BindMethod("SetSecondary", di.Ref("backup")),
			di.BindParam("Configure", 0, di.Value("30")),
			di.BindParam("Configure", 1, di.Info("port")),
		),
		di.WithProperty("port", "8080"),
	)

	svc := build(t, reg, def, dir).(*Service)
	assert.Same(t, db, svc.DB)
	assert.Nil(t, svc.Cache)
	assert.Equal(t, "from-info", svc.Label)
	assert.Equal(t, 3, svc.Retries)
	assert.Same(t, backup, svc.db2)
	assert.Equal(t, 30, svc.timeout)
	assert.Equal(t, 8080, svc.port)

	deps, err := reg.Dependencies(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"backup", "db"}, deps)
}

func TestRegistry_OrChainFallsBackToValue(t *testing.T) {
	dir := newDirectory(map[string]any{"db": &Database{}})
	reg := di.NewRegistry(dir)
	def := di.Describe[Service]("svc")

	svc := build(t, reg, def, dir).(*Service)
	assert.Equal(t, "default", svc.Label)
}

func TestRegistry_OptionalTypeMatchWhenPresent(t *testing.T) {
	cache := &Cache{Size: 8}
	dir := newDirectory(map[string]any{"db": &Database{}, "cache": cache})
	reg := di.NewRegistry(dir)
	def := di.Describe[Service]("svc")

	svc := build(t, reg, def, dir).(*Service)
	assert.Same(t, cache, svc.Cache)

	deps, err := reg.Dependencies(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "db"}, deps)
}

func TestRegistry_RequiredReferenceMissing(t *testing.T) {
	dir := newDirectory(nil)
	reg := di.NewRegistry(dir)
	def := di.Describe[Service]("svc")

	_, err := reg.SetterInjections(def, dir)
	require.Error(t, err)
	var we *di.WiringError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "svc", we.Component)
	assert.Equal(t, "DB", we.Member)
}

func TestRegistry_AmbiguousTypeMatch(t *testing.T) {
	type Consumer struct {
		DB *Database `di:""`
	}
	dir := newDirectory(map[string]any{"a": &Database{}, "b": &Database{}})
	reg := di.NewRegistry(dir)
	def := di.Describe[Consumer]("consumer")

	_, err := reg.Dependencies(def)
	assert.ErrorIs(t, err, di.ErrAmbiguous)

	_, err = reg.SetterInjections(def, dir)
	assert.ErrorIs(t, err, di.ErrAmbiguous)
	assert.True(t, di.IsWiringError(err))
}

func TestRegistry_TypeMismatchFromReference(t *testing.T) {
	type Owner struct {
		Pet *Cat `di:"pet"`
	}
	dir := newDirectory(map[string]any{"pet": &Dog{Name: "rex"}})
	reg := di.NewRegistry(dir)

	_, err := reg.SetterInjections(di.Describe[Owner]("owner"), dir)
	require.Error(t, err)
	assert.True(t, di.IsTypeMismatch(err))
}

func TestRegistry_ConfigurationErrors(t *testing.T) {
	cases := []struct {
		name string
		def  *di.Definition
		want error
	}{
		{
			name: "duplicate claim with tag",
			def:  di.Describe[Service]("svc", di.WithBindings(di.BindField("DB", di.Ref("other")))),
			want: di.ErrDuplicateClaim,
		},
		{
			name: "duplicate parameter claim",
			def: di.Describe[Service]("svc", di.WithBindings(
				di.BindParam("Configure", 0, di.Value("1")),
				di.BindParam("Configure", 0, di.Value("2")),
			)),
			want: di.ErrDuplicateClaim,
		},
		{
			name: "mixed whole and parameter claims",
			def: di.Describe[Service]("svc", di.WithBindings(
				di.BindMethod("SetSecondary", di.Ref("db")),
				di.BindParam("SetSecondary", 0, di.Ref("db")),
			)),
			want: di.ErrMixedClaims,
		},
		{
			name: "partial parameter coverage",
			def:  di.Describe[Service]("svc", di.WithBindings(di.BindParam("Configure", 0, di.Value("1")))),
			want: di.ErrPartialParams,
		},
		{
			name: "whole claim on multi-parameter member",
			def:  di.Describe[Service]("svc", di.WithBindings(di.BindMethod("Configure", di.Value("1")))),
			want: di.ErrArity,
		},
		{
			name: "parameter index out of range",
			def:  di.Describe[Service]("svc", di.WithBindings(di.BindParam("SetSecondary", 3, di.Ref("db")))),
			want: di.ErrArity,
		},
		{
			name: "unknown member",
			def:  di.Describe[Service]("svc", di.WithBindings(di.Bind("Nope", di.Ref("db")))),
			want: di.ErrUnknownMember,
		},
		{
			name: "custom mode without strategy",
			def:  di.Describe[Service]("svc", di.WithBindings(di.BindMethod("SetSecondary", di.Custom(nil)))),
			want: di.ErrNoStrategy,
		},
		{
			name: "parameter claim without strategy",
			def: di.Describe[Service]("svc", di.WithBindings(
				di.BindParam("Configure", 0, di.Value("1")),
				di.BindParam("Configure", 1, di.Custom(func(string, di.Target) di.Strategy { return nil })),
			)),
			want: di.ErrNoStrategy,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := di.NewRegistry(newDirectory(nil))
			err := reg.Prepare(tc.def)
			require.Error(t, err)
			assert.True(t, di.IsConfigurationError(err))
			assert.ErrorIs(t, err, tc.want)

			// 方案错误同样被缓存
			_, err2 := reg.SetterInjections(tc.def, nil)
			assert.Equal(t, err, err2)
		})
	}
}

func TestRegistry_StaticMisuseOnConstructor(t *testing.T) {
	reg := di.NewRegistry(nil)
	def := di.Describe[Widget]("widget",
		di.WithConstructor(NewWidget),
		di.WithBindings(di.BindConstructor(di.Static())),
	)

	_, err := reg.ConstructorInjection(def, nil)
	assert.ErrorIs(t, err, di.ErrStaticMisuse)
	assert.True(t, di.IsWiringError(err))
}

type WidgetFactory struct {
	Prefix string
}

func (f *WidgetFactory) Make(name string) (*Widget, error) {
	return &Widget{Name: f.Prefix + name}, nil
}

func TestRegistry_DelegatedFactory(t *testing.T) {
	dir := newDirectory(map[string]any{"factory": &WidgetFactory{Prefix: "f-"}})
	reg := di.NewRegistry(dir)
	def := di.Describe[Widget]("widget",
		di.WithFactory("factory", reflect.TypeOf(&WidgetFactory{}), "Make"),
		di.WithBindings(di.BindConstructor(di.Value("x"))),
	)

	ts, err := reg.Targets(def)
	require.NoError(t, err)
	assert.Equal(t, di.KindMethod, ts.Construct().Kind())

	ci, err := reg.ConstructorInjection(def, dir)
	require.NoError(t, err)
	w, err := ci.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "f-x", w.(*Widget).Name)

	deps, err := reg.Dependencies(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"factory"}, deps)
}

func TestRegistry_ExplicitDependencyMarkers(t *testing.T) {
	reg := di.NewRegistry(newDirectory(nil))
	def := di.Describe[Widget]("widget",
		di.DependsOn("a", "b", "widget"),
		di.IgnoreDependency("b"),
	)

	deps, err := reg.Dependencies(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, deps)
}

func TestRegistry_StaticZeroArgConstruction(t *testing.T) {
	reg := di.NewRegistry(nil)
	ci, err := reg.ConstructorInjection(di.Describe[Widget]("w"), nil)
	require.NoError(t, err)
	require.NotNil(t, ci)
	assert.True(t, ci.Static())

	w, err := ci.Invoke()
	require.NoError(t, err)
	assert.IsType(t, &Widget{}, w)
}

func TestRegistry_ConstructorErrorsPropagate(t *testing.T) {
	reg := di.NewRegistry(nil)
	def := di.Describe[Widget]("w", di.WithConstructor(func() (*Widget, error) {
		return nil, assert.AnError
	}))
	ci, err := reg.ConstructorInjection(def, nil)
	require.NoError(t, err)
	_, err = ci.Invoke()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRegistry_SetterErrorPropagates(t *testing.T) {
	reg := di.NewRegistry(nil)
	def := di.Describe[Service]("svc", di.WithBindings(
		di.BindParam("Configure", 0, di.Value("1")),
		di.BindParam("Configure", 1, di.Value("-1")),
	))
	dir := newDirectory(map[string]any{"db": &Database{}})
	setters, err := reg.SetterInjections(def, dir)
	require.NoError(t, err)

	svc := &Service{}
	var applyErr error
	for _, si := range setters {
		if err := si.Apply(svc); err != nil {
			applyErr = err
		}
	}
	require.Error(t, applyErr)
	assert.Contains(t, applyErr.Error(), "bad port")
}

func TestRegistry_CloseRebuilds(t *testing.T) {
	reg := di.NewRegistry(newDirectory(nil))
	def := di.Describe[Widget]("w", di.DependsOn("a"))

	deps, err := reg.Dependencies(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, deps)

	def.DependsOn = append(def.DependsOn, "b")
	deps, _ = reg.Dependencies(def)
	assert.Equal(t, []string{"a"}, deps)

	reg.Close(def)
	deps, _ = reg.Dependencies(def)
	assert.Equal(t, []string{"a", "b"}, deps)
}

func TestRegistry_ConcurrentFirstBuild(t *testing.T) {
	dir := newDirectory(map[string]any{"db": &Database{}})
	reg := di.NewRegistry(dir)
	def := di.Describe[Service]("svc")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.SetterInjections(def, dir)
			assert.NoError(t, err)
			_, err = reg.Dependencies(def)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestRegistry_EmptyStrategyChainNamesMember(t *testing.T) {
	reg := di.NewRegistry(newDirectory(nil))
	def := di.Describe[Service]("svc", di.WithBindings(di.BindMethod("SetSecondary", di.Custom(nil))))

	err := reg.Prepare(def)
	require.Error(t, err)
	assert.True(t, di.IsConfigurationError(err))
	assert.ErrorIs(t, err, di.ErrNoStrategy)
	assert.Contains(t, err.Error(), "svc.SetSecondary")
	assert.False(t, di.IsWiringError(err))
}
