package container_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/container"
	"github.com/gocrud/container/component"
	"github.com/gocrud/container/config"
	"github.com/gocrud/container/core"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
)

const shopConfig = `
app:
  name: shop
components:
  inventory:
    pool:
      minSize: 1
      maxSize: 2
  cart:
    stateful: true
    idleTimeout: 1h
    properties:
      currency: EUR
    inject:
      Inventory: ref=inventory
      SetCurrency#0: info=currency|value=USD
`

type Inventory struct {
	Config config.Configuration `di:"configuration"`

	mu    sync.Mutex
	stock map[string]int
}

func (i *Inventory) PostConstruct() error {
	i.stock = map[string]int{"apple": 2}
	return nil
}

func (i *Inventory) Take(item string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stock[item] == 0 {
		return errors.New(item + " is out of stock")
	}
	i.stock[item]--
	return nil
}

type Cart struct {
	Inventory *component.Handle

	currency string
	items    []string
}

func (c *Cart) SetCurrency(currency string) {
	c.currency = currency
}

func (c *Cart) Add(ctx context.Context, item string) error {
	err := component.Use(ctx, c.Inventory, func(_ context.Context, inv *Inventory) error {
		return inv.Take(item)
	})
	if err != nil {
		return err
	}
	c.items = append(c.items, item)
	return nil
}

func loadConfig(t *testing.T) config.Configuration {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shopConfig), 0o644))
	cfg, err := config.NewConfigurationBuilder().AddYamlFile(path).Build()
	require.NoError(t, err)
	return cfg
}

func TestIntegration(t *testing.T) {
	cfg := loadConfig(t)
	rt, err := container.New(
		core.WithLogger(logging.NewNop()),
		config.WithConfiguration(cfg),
		config.WithComponent(cfg, di.Describe[Cart]("cart")),
		config.WithComponent(cfg, di.Describe[Inventory]("inventory")),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))
	defer rt.Stop(ctx)

	assert.Equal(t, []string{"inventory", "cart"}, rt.Order())

	alice, err := rt.Handle(ctx, "cart")
	require.NoError(t, err)
	bob, err := rt.Handle(ctx, "cart")
	require.NoError(t, err)

	require.NoError(t, component.Use(ctx, alice, func(ctx context.Context, c *Cart) error {
		assert.Equal(t, "EUR", c.currency)
		return c.Add(ctx, "apple")
	}))
	require.NoError(t, component.Use(ctx, bob, func(ctx context.Context, c *Cart) error {
		return c.Add(ctx, "apple")
	}))
	err = component.Use(ctx, bob, func(ctx context.Context, c *Cart) error {
		assert.Equal(t, []string{"apple"}, c.items)
		return c.Add(ctx, "apple")
	})
	assert.EqualError(t, err, "apple is out of stock")

	require.NoError(t, component.Use(ctx, alice, func(_ context.Context, c *Cart) error {
		assert.Equal(t, []string{"apple"}, c.items)
		return nil
	}))

	require.NoError(t, component.Use(ctx, mustHandle(t, rt, "inventory"), func(_ context.Context, inv *Inventory) error {
		assert.Equal(t, "shop", inv.Config.Get("app:name"))
		return nil
	}))

	stats, err := rt.PoolStats("cart")
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func mustHandle(t *testing.T, rt *core.Runtime, name string) *component.Handle {
	t.Helper()
	h, err := rt.Handle(context.Background(), name)
	require.NoError(t, err)
	return h
}

func TestRun_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stopped bool
	err := container.Run(ctx,
		core.WithLogger(logging.NewNop()),
		core.WithWorker(func(wctx context.Context) error {
			cancel()
			<-wctx.Done()
			return nil
		}),
		func(rt *core.Runtime) error {
			rt.Lifecycle.OnStop(func(context.Context) error {
				stopped = true
				return nil
			})
			return nil
		},
	)
	require.NoError(t, err)
	assert.True(t, stopped)
}

func TestRun_StopsWhenRuntimeRequestsShutdown(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		done <- container.Run(context.Background(),
			core.WithLogger(logging.NewNop()),
			core.WithWorker(func(context.Context) error {
				return errors.New("boom")
			}),
		)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the worker failed")
	}
}

func TestRun_StartFailure(t *testing.T) {
	type Orphan struct {
		Missing *Inventory `di:"inventory"`
	}
	err := container.Run(context.Background(),
		core.WithLogger(logging.NewNop()),
		core.WithComponent(di.Describe[Orphan]("orphan"), core.Settings{}),
	)
	require.Error(t, err)
	assert.True(t, di.IsConfigurationError(err))
}
